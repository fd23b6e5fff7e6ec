package sync

import (
	"context"

	"fieldsync/internal/domain/entity"
)

// Repository хранилище записей сущностей
type Repository interface {
	// ListEntities возвращает до limit записей с id больше after, по возрастанию id
	ListEntities(ctx context.Context, table entity.Table, after string, limit int) ([]entity.Record, error)
	// UpsertEntities сохраняет записи, сливая поля с существующими
	UpsertEntities(ctx context.Context, table entity.Table, records []entity.Record) (int, error)
}
