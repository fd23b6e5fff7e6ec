package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Checker проверяет готовность компонента и возвращает его состояние
type Checker func(ctx context.Context) (detail string, err error)

type Handler struct {
	log        *slog.Logger
	middleware huma.Middlewares
	component  string
	check      Checker
}

func NewHandler(component string, check Checker, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		log:        log,
		middleware: middleware,
		component:  component,
		check:      check,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	var detail string
	if h.check != nil {
		d, err := h.check(ctx)
		if err != nil {
			h.log.Warn("health check failed", "component", h.component, "error", err)
			return nil, huma.Error503ServiceUnavailable("service unavailable", err)
		}
		detail = d
	}

	return &Output{
		Body: Response{
			Status:    "OK",
			Component: h.component,
			Detail:    detail,
		},
	}, nil
}
