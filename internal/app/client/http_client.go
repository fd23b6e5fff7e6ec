package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"fieldsync/internal/app/client/config"
	"fieldsync/internal/domain/entity"
)

var (
	// ErrBatchRejected - сервер отклонил часть записей пакета (422 с подтверждением)
	ErrBatchRejected = errors.New("batch rejected by server")
	// ErrServerStatus - сервер вернул неуспешный статус
	ErrServerStatus = errors.New("unexpected server status")
	// ErrUnavailable - сервер недоступен (ошибка транспорта)
	ErrUnavailable = errors.New("server unavailable")
)

// BatchAck - подтверждение сервера на пакет записей
type BatchAck struct {
	Status    string           `json:"status"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Rejected  []RejectedRecord `json:"rejected,omitempty"`
}

// RejectedRecord - запись, которую сервер не принял
type RejectedRecord struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// EntityPage - страница записей таблицы с сервера
type EntityPage struct {
	Records    []entity.Record
	NextCursor string
}

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("адрес сервера не задан")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &httpClient{
		client:    client,
		log:       log.With(slog.String("component", "http_client")),
		baseURL:   cfg.BaseURL(),
		userAgent: "FieldSync-Client/1.0",
	}, nil
}

// SetToken устанавливает токен аутентификации
func (h *httpClient) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrServerStatus, resp.StatusCode)
	}

	return nil
}

// PushBatch отправляет пакет записей одной таблицы.
// При ответе 422 возвращает подтверждение вместе с ErrBatchRejected.
func (h *httpClient) PushBatch(ctx context.Context, table entity.Table, records []entity.Record) (*BatchAck, error) {
	resp, err := h.doRequest(ctx, http.MethodPatch, syncPath(table, ""), records)
	if err != nil {
		return nil, err
	}

	body, err := h.readBody(resp)
	if err != nil {
		return nil, err
	}

	var ack BatchAck
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &ack); err != nil {
				return nil, fmt.Errorf("ошибка парсинга ответа: %w", err)
			}
		}
		return &ack, nil

	case resp.StatusCode == http.StatusUnprocessableEntity:
		if err := json.Unmarshal(body, &ack); err == nil && len(ack.Rejected) > 0 {
			return &ack, fmt.Errorf("%w: отклонено %d записей", ErrBatchRejected, len(ack.Rejected))
		}
	}

	return nil, statusError(resp.StatusCode, body)
}

// FetchEntities запрашивает записи таблицы начиная с cursor.
// Сервер может вернуть объект {"<table>": [...], "next_cursor": "..."} или массив.
func (h *httpClient) FetchEntities(ctx context.Context, table entity.Table, cursor string) (*EntityPage, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, syncPath(table, cursor), nil)
	if err != nil {
		return nil, err
	}

	body, err := h.readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	return decodeEntityPage(table, body)
}

func decodeEntityPage(table entity.Table, body []byte) (*EntityPage, error) {
	body = bytes.TrimSpace(body)
	page := &EntityPage{}

	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return page, nil
	}

	if body[0] == '[' {
		if err := json.Unmarshal(body, &page.Records); err != nil {
			return nil, fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
		return page, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа: %w", err)
	}

	if raw, ok := envelope[string(table)]; ok && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &page.Records); err != nil {
			return nil, fmt.Errorf("ошибка парсинга записей %s: %w", table, err)
		}
	}
	if raw, ok := envelope["next_cursor"]; ok {
		_ = json.Unmarshal(raw, &page.NextCursor)
	}

	return page, nil
}

func syncPath(table entity.Table, cursor string) string {
	q := url.Values{}
	q.Set("entity", string(table))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return "/api/sync?" + q.Encode()
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	// Добавляем заголовки
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)

	h.mu.RLock()
	token := h.token
	h.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return resp, nil
}

func (h *httpClient) readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения ответа: %v", ErrUnavailable, err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"size", len(body),
	)

	return body, nil
}

func statusError(status int, body []byte) error {
	var errResp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if msg := errResp.Error + errResp.Detail; msg != "" {
			return fmt.Errorf("%w %d: %s", ErrServerStatus, status, msg)
		}
	}
	return fmt.Errorf("%w %d", ErrServerStatus, status)
}
