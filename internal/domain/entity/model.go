package entity

import (
	"fmt"
	"time"
)

// Record - бизнес-объект произвольной сущности в виде JSON-объекта.
// Поле "id" обязательно, поле "_syncStatus" добавляет движок синхронизации.
type Record map[string]any

// ID возвращает идентификатор записи или пустую строку.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Status возвращает статус синхронизации записи.
func (r Record) Status() SyncStatus {
	s, _ := r[SyncStatusField].(string)
	return SyncStatus(s)
}

// Clone возвращает поверхностную копию записи
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WithStatus возвращает копию записи с указанным статусом.
func (r Record) WithStatus(s SyncStatus) Record {
	out := r.Clone()
	out[SyncStatusField] = string(s)
	return out
}

// Merge накладывает partial поверх записи (поверхностно) и возвращает копию.
func (r Record) Merge(partial Record) Record {
	out := r.Clone()
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// WithoutSyncFields убирает служебные поля перед отправкой на сервер.
func (r Record) WithoutSyncFields() Record {
	out := r.Clone()
	delete(out, SyncStatusField)
	return out
}

// RequireID проверяет наличие идентификатора.
func (r Record) RequireID() error {
	if r.ID() == "" {
		return ErrMissingID
	}
	return nil
}

// UnsyncedItem - запись из очереди неотправленных изменений
type UnsyncedItem struct {
	ID       string     `json:"id"`
	Store    Table      `json:"store"`
	Status   SyncStatus `json:"status"`
	Revision int64      `json:"revision"`
	Payload  Record     `json:"payload"`
}

// TileRecord - закэшированный тайл карты
type TileRecord struct {
	ID        string    `json:"id"`
	Blob      []byte    `json:"blob"`
	CreatedAt time.Time `json:"created_at"`
}

// TileID формирует ключ тайла вида "z/x/y".
func TileID(z, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}
