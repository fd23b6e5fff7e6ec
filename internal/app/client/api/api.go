// API управления фоновым обработчиком (локальный HTTP):
//POST /api/v1/commands   # TRIGGER_PULL / TRIGGER_PUSH
//POST /api/v1/tiles      # загрузка тайлов вокруг точки
//GET  /api/v1/status     # состояние движка
//GET  /api/v1/health     # проверка доступности
//GET  /app/*             # оболочка приложения из кэша

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"fieldsync/internal/app/client"
	controlAPI "fieldsync/internal/app/client/api/http/control"
	"fieldsync/internal/handler/health"
	"fieldsync/internal/handler/middleware"
	"fieldsync/internal/handler/middleware/logger"
)

type Handlers struct {
	Health  *health.Handler
	Control *controlAPI.Handler
}

// New создает *chi.Mux API управления
func New(worker *client.Worker, app *client.App, shell *client.ShellCache, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("FieldSync Control API", "1.0.0")
	API := humachi.New(mux, config)

	h := handlers(worker, app, log)
	h.Health.SetupRoutes(API)
	h.Control.SetupRoutes(API)

	if shell != nil {
		mux.Get("/app/*", shellHandler(shell))
	}

	return mux
}

func handlers(worker *client.Worker, app *client.App, log *slog.Logger) *Handlers {
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	healthHandler := health.NewHandler("fieldsync-worker", func(context.Context) (string, error) {
		return string(app.Phase()), nil
	}, log, middlewares.Add(loggerMW.Middleware()).GetAllAndClear())

	controlHandler := controlAPI.NewHandler(worker, app, log,
		middlewares.Add(loggerMW.Middleware()).GetAllAndClear())

	return &Handlers{
		Health:  healthHandler,
		Control: controlHandler,
	}
}

// shellHandler отдает ресурсы оболочки из кэша
func shellHandler(shell *client.ShellCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := "/" + chi.URLParam(r, "*")
		p, ok := shell.Lookup(resource)
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, p)
	}
}

// Server - HTTP-сервер API управления, реализует client.ControlServer
type Server struct {
	srv *http.Server
	log *slog.Logger
}

func NewServer(addr string, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With(slog.String("component", "control_api")),
	}
}

// Start занимает адрес и обслуживает запросы в фоне
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("ошибка прослушивания %s: %w", s.srv.Addr, err)
	}

	s.log.Info("API управления запущено", "address", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Ошибка API управления", "error", err)
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
