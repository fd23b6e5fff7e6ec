package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) getEntitiesOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-entities",
		Method:      http.MethodGet,
		Path:        "/api/sync",
		Summary:     "Получить записи сущности",
		Description: "Возвращает страницу записей таблицы, упорядоченных по id",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) batchSyncOp() huma.Operation {
	return huma.Operation{
		OperationID:   "sync-batch",
		Method:        http.MethodPatch,
		Path:          "/api/sync",
		Summary:       "Пакетная отправка записей",
		Description:   "Сохраняет записи таблицы. Отклоненные записи перечисляются в ответе со статусом 422",
		Tags:          []string{"sync"},
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
		DefaultStatus: http.StatusOK,
	}
}
