package control

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) commandOp() huma.Operation {
	return huma.Operation{
		OperationID:   "post-command",
		Method:        http.MethodPost,
		Path:          "/api/v1/commands",
		Summary:       "Send command to the background worker",
		Description:   "Queues TRIGGER_PULL or TRIGGER_PUSH and returns immediately",
		Tags:          []string{"control"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) tilesOp() huma.Operation {
	return huma.Operation{
		OperationID:   "download-tiles",
		Method:        http.MethodPost,
		Path:          "/api/v1/tiles",
		Summary:       "Prefetch map tiles around a point",
		Tags:          []string{"control"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Sync engine status",
		Description: "Returns worker phase, connectivity, outbox size per table and tile count",
		Tags:        []string{"control"},
		Middlewares: h.middleware,
	}
}
