package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"fieldsync/internal/domain/entity"
)

// SyncRepository хранит записи всех сущностей в одной таблице entity_records
type SyncRepository struct {
	storage *Storage
	log     *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(storage *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		storage: storage,
		log:     log.With(slog.String("component", "sync_repository")),
	}
}

// ListEntities возвращает записи таблицы с id больше after
func (r *SyncRepository) ListEntities(ctx context.Context, table entity.Table, after string, limit int) ([]entity.Record, error) {
	query := `
		SELECT payload
		FROM entity_records
		WHERE entity = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.storage.pool.Query(ctx, query, string(table), after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Record, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return nil, err
		}
		var rec entity.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan entities: %w", err)
	}

	return records, nil
}

// UpsertEntities сохраняет записи одним батчем. Поля новой версии
// перекрывают сохраненные, остальные поля остаются.
func (r *SyncRepository) UpsertEntities(ctx context.Context, table entity.Table, records []entity.Record) (int, error) {
	query := `
		INSERT INTO entity_records (entity, id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity, id) DO UPDATE SET
			payload = entity_records.payload || EXCLUDED.payload,
			updated_at = now()
	`

	tx, err := r.storage.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", rec.ID(), err)
		}
		batch.Queue(query, string(table), rec.ID(), payload)
	}

	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("failed to upsert entity: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	r.log.Debug("Entities upserted", "table", table, "count", len(records))
	return len(records), nil
}
