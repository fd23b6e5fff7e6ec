package sync

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"fieldsync/internal/domain/entity"
	"fieldsync/internal/domain/sync"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getEntitiesOp(), h.getEntities)
	huma.Register(api, h.batchSyncOp(), h.batchSync)
}

func (h *Handler) getEntities(ctx context.Context, input *getEntitiesInput) (*getEntitiesOutput, error) {
	table, err := entity.Lookup(input.Entity)
	if err != nil {
		return nil, huma.Error400BadRequest("unknown entity", err)
	}

	page, err := h.service.GetEntities(ctx, table, input.Cursor, input.Limit)
	if err != nil {
		h.log.Error("failed to get entities", "entity", input.Entity, "error", err)
		return nil, huma.Error500InternalServerError("failed to get entities")
	}

	records := page.Records
	if records == nil {
		records = []entity.Record{}
	}

	body := map[string]any{string(table): records}
	if page.NextCursor != "" {
		body["next_cursor"] = page.NextCursor
	}

	return &getEntitiesOutput{Body: body}, nil
}

func (h *Handler) batchSync(ctx context.Context, input *batchSyncInput) (*batchSyncOutput, error) {
	table, err := entity.Lookup(input.Entity)
	if err != nil {
		return nil, huma.Error400BadRequest("unknown entity", err)
	}

	result, err := h.service.ProcessBatch(ctx, table, input.Body)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrEmptyBatch):
			return nil, huma.Error400BadRequest("empty batch", err)
		case errors.Is(err, sync.ErrBatchTooLarge):
			return nil, huma.NewError(http.StatusRequestEntityTooLarge, "batch is too large", err)
		}
		h.log.Error("failed to process batch", "entity", input.Entity, "error", err)
		return nil, huma.Error500InternalServerError("failed to process batch")
	}

	status := http.StatusOK
	if len(result.Rejected) > 0 {
		status = http.StatusUnprocessableEntity
	}

	return &batchSyncOutput{Status: status, Body: *result}, nil
}
