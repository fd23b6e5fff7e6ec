package sync

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"fieldsync/internal/domain/entity"
)

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// GetEntities возвращает страницу записей таблицы после cursor
	GetEntities(ctx context.Context, table entity.Table, cursor string, limit int) (*Page, error)

	// ProcessBatch проверяет и сохраняет пакет записей таблицы
	ProcessBatch(ctx context.Context, table entity.Table, records []entity.Record) (*BatchResult, error)
}

// Service реализация сервиса синхронизации
type Service struct {
	repo   Repository
	log    *slog.Logger
	config *ServiceConfig
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.PageSize <= 0 {
		config.PageSize = 500
	}
	if config.MaxPageSize < config.PageSize {
		config.MaxPageSize = config.PageSize
	}
	if config.MaxBatch <= 0 {
		config.MaxBatch = 1000
	}

	return &Service{
		repo:   repo,
		log:    log,
		config: config,
	}
}

// GetEntities возвращает страницу записей. NextCursor пуст на последней странице.
func (s *Service) GetEntities(ctx context.Context, table entity.Table, cursor string, limit int) (*Page, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.config.PageSize
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}

	// на одну больше, чтобы понять, есть ли следующая страница
	records, err := s.repo.ListEntities(ctx, table, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}

	page := &Page{Records: records}
	if len(records) > limit {
		page.Records = records[:limit]
		page.NextCursor = page.Records[limit-1].ID()
	}

	return page, nil
}

// ProcessBatch сохраняет записи, прошедшие проверку схемы.
// Отклоненные записи перечисляются в Rejected и не мешают остальным.
func (s *Service) ProcessBatch(ctx context.Context, table entity.Table, records []entity.Record) (*BatchResult, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(records) > s.config.MaxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(records), s.config.MaxBatch)
	}

	result := &BatchResult{Status: "Ok"}
	accepted := make([]entity.Record, 0, len(records))

	for i, rec := range records {
		rec = rec.WithoutSyncFields()
		if err := entity.ValidateRecord(table, rec); err != nil {
			id := rec.ID()
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			result.Rejected = append(result.Rejected, RejectedRecord{ID: id, Error: err.Error()})
			continue
		}
		accepted = append(accepted, rec)
	}

	if len(accepted) > 0 {
		n, err := s.repo.UpsertEntities(ctx, table, accepted)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert %s: %w", table, err)
		}
		result.Processed = n
	}

	result.Failed = len(result.Rejected)
	if result.Failed > 0 {
		s.log.Warn("Batch partially rejected",
			"table", table,
			"processed", result.Processed,
			"rejected", result.Failed,
		)
	}

	return result, nil
}
