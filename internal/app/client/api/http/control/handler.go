package control

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"fieldsync/internal/app/client"
	"fieldsync/internal/app/client/tiles"
)

// tilesTimeout ограничивает фоновую загрузку тайлов по одному запросу
const tilesTimeout = 15 * time.Minute

// Commander принимает команды для фонового обработчика
type Commander interface {
	Post(cmd client.Command) error
}

// Engine - операции движка, доступные через API управления
type Engine interface {
	Status(ctx context.Context) (*client.Status, error)
	DownloadTiles(ctx context.Context, lat, lon float64) (tiles.Result, error)
}

type Handler struct {
	commander  Commander
	engine     Engine
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(commander Commander, engine Engine, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		commander:  commander,
		engine:     engine,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.commandOp(), h.postCommand)
	huma.Register(api, h.tilesOp(), h.downloadTiles)
	huma.Register(api, h.statusOp(), h.getStatus)
}

func (h *Handler) postCommand(_ context.Context, input *commandInput) (*commandOutput, error) {
	cmd := client.Command(input.Body.Command)

	if err := h.commander.Post(cmd); err != nil {
		switch {
		case errors.Is(err, client.ErrUnknownCommand):
			return nil, huma.Error400BadRequest("unknown command", err)
		case errors.Is(err, client.ErrNotActive):
			return nil, huma.Error503ServiceUnavailable("worker is not active", err)
		}
		h.log.Error("failed to post command", "command", input.Body.Command, "error", err)
		return nil, huma.Error500InternalServerError("failed to post command")
	}

	return &commandOutput{
		Body: AcceptedResponse{Status: "Accepted", Command: string(cmd)},
	}, nil
}

func (h *Handler) downloadTiles(ctx context.Context, input *tilesInput) (*tilesOutput, error) {
	lat, lon := input.Body.Lat, input.Body.Lon

	// загрузка переживает запрос
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), tilesTimeout)
	go func() {
		defer cancel()
		if _, err := h.engine.DownloadTiles(bg, lat, lon); err != nil {
			h.log.Warn("tile download failed", "lat", lat, "lon", lon, "error", err)
		}
	}()

	return &tilesOutput{Body: AcceptedResponse{Status: "Accepted"}}, nil
}

func (h *Handler) getStatus(ctx context.Context, _ *statusInput) (*statusOutput, error) {
	st, err := h.engine.Status(ctx)
	if err != nil {
		h.log.Error("failed to get status", "error", err)
		return nil, huma.Error500InternalServerError("failed to get status")
	}

	return &statusOutput{Body: st}, nil
}
