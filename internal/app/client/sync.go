package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"fieldsync/internal/app/client/config"
	"fieldsync/internal/app/client/store"
	"fieldsync/internal/domain/entity"
)

// maxPullPages ограничивает число страниц одной таблицы за цикл
const maxPullPages = 10000

// SyncAPI - серверная часть протокола синхронизации
type SyncAPI interface {
	SetToken(token string)
	HealthCheck(ctx context.Context) error
	PushBatch(ctx context.Context, table entity.Table, records []entity.Record) (*BatchAck, error)
	FetchEntities(ctx context.Context, table entity.Table, cursor string) (*EntityPage, error)
}

// SyncConfig конфигурация синхронизации
type SyncConfig struct {
	BatchSize          int    `json:"batch_size"`
	PartialFailureMode string `json:"partial_failure_mode"` // batch, record
}

// SyncError ошибка синхронизации
type SyncError struct {
	Table     entity.Table `json:"table"`
	RecordID  string       `json:"record_id,omitempty"`
	Error     string       `json:"error"`
	Operation string       `json:"operation"`
	Timestamp time.Time    `json:"timestamp"`
}

// TablePushResult - итог отправки одной таблицы
type TablePushResult struct {
	Table   entity.Table `json:"table"`
	Batches int          `json:"batches"`
	Synced  int          `json:"synced"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
}

// PushResult результат отправки локальных изменений
type PushResult struct {
	Tables      []TablePushResult `json:"tables"`
	Batches     int               `json:"batches"`
	Synced      int               `json:"synced"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Unavailable int               `json:"unavailable"`
	Errors      []SyncError       `json:"errors"`
	Duration    time.Duration     `json:"duration"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
}

// TablePullResult - итог загрузки одной таблицы
type TablePullResult struct {
	Table    entity.Table `json:"table"`
	Received int          `json:"received"`
	Applied  int          `json:"applied"`
	Invalid  int          `json:"invalid"`
}

// PullResult результат загрузки данных с сервера
type PullResult struct {
	Tables    []TablePullResult `json:"tables"`
	Received  int               `json:"received"`
	Applied   int               `json:"applied"`
	Invalid   int               `json:"invalid"`
	Errors    []SyncError       `json:"errors"`
	Duration  time.Duration     `json:"duration"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
}

// SyncService сверяет локальное хранилище с сервером
type SyncService struct {
	api    SyncAPI
	store  store.Store
	config SyncConfig
	log    *slog.Logger
}

// NewSyncService создает новый сервис синхронизации
func NewSyncService(api SyncAPI, st store.Store, cfg SyncConfig, log *slog.Logger) *SyncService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PartialFailureMode == "" {
		cfg.PartialFailureMode = config.PartialFailureBatch
	}

	return &SyncService{
		api:    api,
		store:  st,
		config: cfg,
		log:    log.With(slog.String("component", "sync")),
	}
}

// Push отправляет очередь неотправленных записей по таблицам, пакетами по BatchSize.
// Ошибка пакета помечает его записи статусом error и не прерывает остальные пакеты.
func (s *SyncService) Push(ctx context.Context) (*PushResult, error) {
	result := &PushResult{StartTime: time.Now()}

	for _, table := range entity.Tables() {
		if err := ctx.Err(); err != nil {
			return s.finishPush(result), err
		}

		items, err := s.store.ListUnsynced(ctx, table)
		if err != nil {
			s.log.Error("Не удалось прочитать очередь", "table", table, "error", err)
			result.Errors = append(result.Errors, newSyncError(table, "", "push", err))
			continue
		}
		if len(items) == 0 {
			continue
		}

		tr := TablePushResult{Table: table}
		for _, batch := range partition(items, s.config.BatchSize) {
			tr.Batches++
			s.pushBatch(ctx, table, batch, &tr, result)
		}

		result.Tables = append(result.Tables, tr)
		result.Batches += tr.Batches
		result.Synced += tr.Synced
		result.Failed += tr.Failed
		result.Skipped += tr.Skipped
	}

	return s.finishPush(result), nil
}

func (s *SyncService) pushBatch(ctx context.Context, table entity.Table, batch []entity.UnsyncedItem, tr *TablePushResult, result *PushResult) {
	records := make([]entity.Record, 0, len(batch))
	for _, item := range batch {
		records = append(records, item.Payload.WithoutSyncFields())
	}

	ack, err := s.api.PushBatch(ctx, table, records)

	rejected := map[string]string{}
	batchFailed := err != nil
	if s.config.PartialFailureMode == config.PartialFailureRecord && ack != nil {
		if err == nil || errors.Is(err, ErrBatchRejected) {
			for _, r := range ack.Rejected {
				rejected[r.ID] = r.Error
			}
			batchFailed = false
		}
	}

	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			result.Unavailable++
		}
		s.log.Warn("Пакет не отправлен",
			"table", table,
			"size", len(batch),
			"error", err,
		)
		result.Errors = append(result.Errors, newSyncError(table, "", "push", err))
	}

	for _, item := range batch {
		status := entity.StatusSynced
		if batchFailed {
			status = entity.StatusError
		} else if msg, ok := rejected[item.ID]; ok {
			status = entity.StatusError
			result.Errors = append(result.Errors, SyncError{
				Table:     table,
				RecordID:  item.ID,
				Error:     msg,
				Operation: "push",
				Timestamp: time.Now(),
			})
		}

		applied, err := s.store.ResolveUnsynced(ctx, item, status)
		if err != nil {
			s.log.Error("Не удалось обновить статус записи", "table", table, "id", item.ID, "error", err)
			result.Errors = append(result.Errors, newSyncError(table, item.ID, "resolve", err))
			tr.Failed++
			continue
		}
		if !applied {
			// запись изменилась во время отправки и уйдет в следующем цикле
			tr.Skipped++
			continue
		}

		if status == entity.StatusSynced {
			tr.Synced++
		} else {
			tr.Failed++
		}
	}
}

func (s *SyncService) finishPush(result *PushResult) *PushResult {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	s.log.Info("Отправка завершена",
		"batches", result.Batches,
		"synced", result.Synced,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.Duration.String(),
	)
	return result
}

// Pull загружает записи всех таблиц с сервера и сохраняет их со статусом synced.
// Поля сервера перекрывают локальные, локальные записи не удаляются.
func (s *SyncService) Pull(ctx context.Context) (*PullResult, error) {
	result := &PullResult{StartTime: time.Now()}

	for _, table := range entity.Tables() {
		if err := ctx.Err(); err != nil {
			return s.finishPull(result), err
		}

		tr, err := s.pullTable(ctx, table)
		if err != nil {
			s.log.Warn("Не удалось загрузить таблицу", "table", table, "error", err)
			result.Errors = append(result.Errors, newSyncError(table, "", "pull", err))
		}

		if tr.Received > 0 {
			result.Tables = append(result.Tables, tr)
		}
		result.Received += tr.Received
		result.Applied += tr.Applied
		result.Invalid += tr.Invalid
	}

	return s.finishPull(result), nil
}

func (s *SyncService) pullTable(ctx context.Context, table entity.Table) (TablePullResult, error) {
	tr := TablePullResult{Table: table}
	cursor := ""

	for page := 0; page < maxPullPages; page++ {
		resp, err := s.api.FetchEntities(ctx, table, cursor)
		if err != nil {
			return tr, err
		}

		for _, rec := range resp.Records {
			tr.Received++

			id := rec.ID()
			if id == "" {
				tr.Invalid++
				continue
			}

			if err := s.store.Update(ctx, table, id, rec.WithStatus(entity.StatusSynced)); err != nil {
				return tr, fmt.Errorf("ошибка сохранения записи %s: %w", id, err)
			}
			tr.Applied++
		}

		if resp.NextCursor == "" || resp.NextCursor == cursor || len(resp.Records) == 0 {
			return tr, nil
		}
		cursor = resp.NextCursor
	}

	return tr, nil
}

func (s *SyncService) finishPull(result *PullResult) *PullResult {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	s.log.Info("Загрузка завершена",
		"received", result.Received,
		"applied", result.Applied,
		"invalid", result.Invalid,
		"duration", result.Duration.String(),
	)
	return result
}

// partition делит элементы очереди на пакеты не больше size
func partition(items []entity.UnsyncedItem, size int) [][]entity.UnsyncedItem {
	batches := make([][]entity.UnsyncedItem, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

func newSyncError(table entity.Table, id, op string, err error) SyncError {
	return SyncError{
		Table:     table,
		RecordID:  id,
		Error:     err.Error(),
		Operation: op,
		Timestamp: time.Now(),
	}
}
