// Package daemon - клиент API управления запущенного фонового обработчика
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fieldsync/internal/app/client"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Command отправляет команду TRIGGER_PULL / TRIGGER_PUSH
func (c *Client) Command(ctx context.Context, cmd client.Command) error {
	return c.do(ctx, http.MethodPost, "/api/v1/commands", map[string]string{"command": string(cmd)}, nil)
}

// Tiles ставит загрузку тайлов вокруг точки
func (c *Client) Tiles(ctx context.Context, lat, lon float64) error {
	return c.do(ctx, http.MethodPost, "/api/v1/tiles", map[string]float64{"lat": lat, "lon": lon}, nil)
}

// Status возвращает состояние движка в обработчике
func (c *Client) Status(ctx context.Context) (*client.Status, error) {
	var st client.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("фоновый обработчик недоступен (fieldsync run): %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var problem struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &problem) == nil && problem.Detail != "" {
			return fmt.Errorf("обработчик ответил %d: %s", resp.StatusCode, problem.Detail)
		}
		return fmt.Errorf("обработчик ответил %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}
	return nil
}
