package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"
)

// DefaultShellResources - оболочка приложения, нужная для работы офлайн
var DefaultShellResources = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/static/app.js",
	"/static/app.css",
}

// ShellManifest описывает набор ресурсов оболочки
type ShellManifest struct {
	Version   string   `yaml:"version"`
	BaseURL   string   `yaml:"base_url"`
	Resources []string `yaml:"resources"`
}

// LoadShellManifest читает манифест из YAML. Пустой путь - набор по умолчанию.
func LoadShellManifest(p string) (*ShellManifest, error) {
	if p == "" {
		return &ShellManifest{Version: "v1", Resources: DefaultShellResources}, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста: %w", err)
	}

	var m ShellManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ошибка парсинга манифеста: %w", err)
	}
	if m.Version == "" {
		m.Version = "v1"
	}
	if len(m.Resources) == 0 {
		m.Resources = DefaultShellResources
	}

	return &m, nil
}

// ShellCache - кэш ответов с ресурсами оболочки, отдельный от локального хранилища.
// Версия загружается целиком или не загружается вовсе.
type ShellCache struct {
	dir      string
	baseURL  string
	manifest *ShellManifest
	client   *http.Client
	log      *slog.Logger
}

func NewShellCache(dir, baseURL string, manifest *ShellManifest, log *slog.Logger) *ShellCache {
	if manifest.BaseURL != "" {
		baseURL = manifest.BaseURL
	}

	return &ShellCache{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		manifest: manifest,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log.With(slog.String("component", "shell_cache")),
	}
}

// Prefetch скачивает все ресурсы манифеста в каталог текущей версии.
func (c *ShellCache) Prefetch(ctx context.Context) (int, error) {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return 0, fmt.Errorf("ошибка создания каталога кэша: %w", err)
	}

	tmp, err := os.MkdirTemp(c.dir, ".install-")
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного каталога: %w", err)
	}
	defer os.RemoveAll(tmp)

	for _, res := range c.manifest.Resources {
		name, err := resourceFile(res)
		if err != nil {
			return 0, err
		}
		if err := c.download(ctx, res, filepath.Join(tmp, name)); err != nil {
			return 0, fmt.Errorf("ресурс %s: %w", res, err)
		}
	}

	target := c.versionDir()
	if err := os.RemoveAll(target); err != nil {
		return 0, fmt.Errorf("ошибка очистки кэша: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return 0, fmt.Errorf("ошибка сохранения кэша: %w", err)
	}

	return len(c.manifest.Resources), nil
}

// Lookup возвращает путь к закэшированному ресурсу
func (c *ShellCache) Lookup(resource string) (string, bool) {
	name, err := resourceFile(resource)
	if err != nil {
		return "", false
	}

	p := filepath.Join(c.versionDir(), name)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func (c *ShellCache) versionDir() string {
	return filepath.Join(c.dir, c.manifest.Version)
}

func (c *ShellCache) download(ctx context.Context, resource, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+resource, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("ошибка записи ресурса: %w", err)
	}

	c.log.Debug("Ресурс сохранен", "resource", resource)
	return nil
}

// resourceFile переводит путь ресурса в относительный путь файла кэша
func resourceFile(resource string) (string, error) {
	if !strings.HasPrefix(resource, "/") {
		return "", fmt.Errorf("путь ресурса должен начинаться с /: %q", resource)
	}

	// путь с корнем после Clean не выходит за пределы каталога кэша
	clean := path.Clean(resource)
	if strings.HasSuffix(resource, "/") || clean == "/" {
		clean = path.Join(clean, "index.html")
	}

	return filepath.FromSlash(strings.TrimPrefix(clean, "/")), nil
}
