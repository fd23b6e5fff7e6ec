package sync

import (
	"fieldsync/internal/domain/entity"
	"fieldsync/internal/domain/sync"
)

type getEntitiesInput struct {
	Entity string `query:"entity" required:"true" example:"researches" doc:"Entity table name"`
	Cursor string `query:"cursor" doc:"Id of the last record of the previous page"`
	Limit  int    `query:"limit" minimum:"0" maximum:"5000" doc:"Page size, server default when 0"`
}

// getEntitiesOutput - {"<entity>": [...], "next_cursor": "..."}
type getEntitiesOutput struct {
	Body map[string]any
}

type batchSyncInput struct {
	Entity string `query:"entity" required:"true" example:"researches"`
	Body   []entity.Record
}

// batchSyncOutput: 200 когда все записи приняты, 422 с тем же телом при отказах
type batchSyncOutput struct {
	Status int
	Body   sync.BatchResult
}
