package sync

import (
	"fieldsync/internal/domain/entity"
)

// Page - страница записей одной таблицы
type Page struct {
	Records    []entity.Record
	NextCursor string
}

// RejectedRecord запись, не прошедшая проверку
type RejectedRecord struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult итог обработки пакета
type BatchResult struct {
	Status    string           `json:"status" example:"Ok"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Rejected  []RejectedRecord `json:"rejected,omitempty"`
}

// ServiceConfig конфигурация сервиса синхронизации
type ServiceConfig struct {
	PageSize    int `json:"page_size"`
	MaxPageSize int `json:"max_page_size"`
	MaxBatch    int `json:"max_batch"`
}
