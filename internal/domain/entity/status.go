package entity

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// SyncStatus - состояние записи относительно сервера
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
)

// SyncStatusField - служебное поле записи, которое добавляет движок
const SyncStatusField = "_syncStatus"

func (SyncStatus) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type: "string",
		Enum: []any{
			string(StatusPending),
			string(StatusSynced),
			string(StatusError),
		},
		Description: "Статус синхронизации записи",
		Examples:    []any{StatusPending},
	}
}

// Validate проверяет допустимость статуса.
func (s SyncStatus) Validate() error {
	switch s {
	case StatusPending, StatusSynced, StatusError:
		return nil
	}
	return fmt.Errorf("неверный статус синхронизации: %s", s)
}

// NeedsPush сообщает, должна ли запись попасть в следующий push.
func (s SyncStatus) NeedsPush() bool {
	return s == StatusPending || s == StatusError
}

func (s SyncStatus) String() string {
	return string(s)
}
