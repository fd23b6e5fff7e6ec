// Package store содержит локальное хранилище клиента: таблицы сущностей,
// очередь неотправленных изменений (outbox) и кэш тайлов карты.
package store

import (
	"context"
	"errors"

	"fieldsync/internal/domain/entity"
)

// ErrClosed возвращается при обращении к закрытому хранилищу
var ErrClosed = errors.New("storage is closed")

// Store - локальное хранилище записей.
//
// Каждая операция выполняется в отдельной транзакции над одной таблицей.
// Хранилище не меняет _syncStatus записей самостоятельно, но в той же
// транзакции поддерживает индекс outbox: записи в статусе pending или error
// попадают в очередь, записи в статусе synced из нее удаляются.
type Store interface {
	// Create сохраняет запись целиком (последняя запись по id побеждает)
	Create(ctx context.Context, table entity.Table, rec entity.Record) error

	// Get возвращает запись или entity.ErrNotFound
	Get(ctx context.Context, table entity.Table, id string) (entity.Record, error)

	// GetAll возвращает все записи таблицы
	GetAll(ctx context.Context, table entity.Table) ([]entity.Record, error)

	// Update поверхностно накладывает partial на существующую запись.
	// Если записи нет, partial сохраняется как новая запись.
	Update(ctx context.Context, table entity.Table, id string, partial entity.Record) error

	// Delete удаляет запись и ее элемент outbox
	Delete(ctx context.Context, table entity.Table, id string) error

	Outbox
	TileStore

	Close() error
}

// Outbox - индекс записей, ожидающих отправки на сервер
type Outbox interface {
	// ListUnsynced возвращает элементы очереди таблицы в порядке постановки
	ListUnsynced(ctx context.Context, table entity.Table) ([]entity.UnsyncedItem, error)

	// EnumerateUnsynced возвращает элементы очереди всех таблиц
	EnumerateUnsynced(ctx context.Context) ([]entity.UnsyncedItem, error)

	// ResolveUnsynced фиксирует результат отправки элемента. Если после
	// постановки в очередь запись менялась локально (ревизия выросла),
	// ничего не делает и возвращает false.
	ResolveUnsynced(ctx context.Context, item entity.UnsyncedItem, status entity.SyncStatus) (bool, error)

	// CountUnsynced возвращает размер очереди по таблицам
	CountUnsynced(ctx context.Context) (map[entity.Table]int, error)
}

// TileStore - кэш тайлов карты, ключ "z/x/y"
type TileStore interface {
	HasTile(ctx context.Context, id string) (bool, error)
	PutTile(ctx context.Context, tile entity.TileRecord) error
	CountTiles(ctx context.Context) (int, error)

	// EvictTiles удаляет самые старые тайлы сверх keep и возвращает их число
	EvictTiles(ctx context.Context, keep int) (int, error)
}

// enumerateAll обходит таблицы в порядке синхронизации и собирает очередь.
func enumerateAll(ctx context.Context, o Outbox) ([]entity.UnsyncedItem, error) {
	var items []entity.UnsyncedItem
	for _, t := range entity.Tables() {
		part, err := o.ListUnsynced(ctx, t)
		if err != nil {
			return nil, err
		}
		items = append(items, part...)
	}
	return items, nil
}
