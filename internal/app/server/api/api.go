//Эталонный сервер синхронизации:
//GET   /api/v1/health                   # Проверка доступности (публичный)
//GET   /api/sync?entity=<name>&cursor=  # Страница записей сущности (auth)
//PATCH /api/sync?entity=<name>          # Пакет записей сущности (auth)

package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	syncAPI "fieldsync/internal/app/server/api/http/sync"
	"fieldsync/internal/app/server/config"
	"fieldsync/internal/domain/sync"
	"fieldsync/internal/handler/health"
	"fieldsync/internal/handler/middleware"
	"fieldsync/internal/handler/middleware/auth"
	"fieldsync/internal/handler/middleware/logger"
	"fieldsync/internal/infrastructure/storage/postgres"
)

type Handlers struct {
	Health *health.Handler
	Sync   *syncAPI.Handler
}

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *chi.Mux {
	return newMux(postgres.NewSyncRepository(storage, log), storage, cfg, log)
}

func newMux(repo sync.Repository, db Pinger, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("FieldSync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(API, repo, db, cfg, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(api huma.API, repo sync.Repository, db Pinger, cfg *config.Config, log *slog.Logger) *Handlers {
	authMW := auth.New(cfg.Auth.TokenHashes, log)
	if !authMW.Enabled() {
		log.Warn("AUTH_TOKEN_HASHES is empty, sync API is open")
	}
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := health.NewHandler("postgres", func(ctx context.Context) (string, error) {
		if err := db.Ping(ctx); err != nil {
			return "", err
		}
		return "connected", nil
	}, log, middlewares.GetAllAndClear())

	syncService := sync.NewService(repo, log, &sync.ServiceConfig{PageSize: cfg.Sync.PageSize})
	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware(api))
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
	}
}
