// Package tiles скачивает тайлы карты вокруг точки и кладет их в локальное хранилище.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"fieldsync/internal/domain/entity"
)

const (
	DefaultURL           = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultRadiusKM      = 2.0
	DefaultMaxTiles      = 10000
	DefaultRatePerSecond = 10.0
	DefaultConcurrency   = 4
)

var DefaultZoomLevels = []int{14, 15}

// Store - часть локального хранилища, нужная загрузчику
type Store interface {
	HasTile(ctx context.Context, id string) (bool, error)
	PutTile(ctx context.Context, tile entity.TileRecord) error
	EvictTiles(ctx context.Context, keep int) (int, error)
}

type Config struct {
	URL           string
	ZoomLevels    []int
	RadiusKM      float64
	MaxTiles      int
	RatePerSecond float64
	Concurrency   int
	UserAgent     string
}

// Result - итог загрузки области
type Result struct {
	Total      int `json:"total"`
	Cached     int `json:"cached"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	Evicted    int `json:"evicted"`
}

type Prefetcher struct {
	store   Store
	client  *http.Client
	limiter *rate.Limiter
	cfg     Config
	log     *slog.Logger
}

func NewPrefetcher(cfg Config, store Store, client *http.Client, log *slog.Logger) *Prefetcher {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if len(cfg.ZoomLevels) == 0 {
		cfg.ZoomLevels = DefaultZoomLevels
	}
	if cfg.RadiusKM <= 0 {
		cfg.RadiusKM = DefaultRadiusKM
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "fieldsync/1.0"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Prefetcher{
		store:   store,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Concurrency),
		cfg:     cfg,
		log:     log.With(slog.String("component", "tiles")),
	}
}

// DownloadAreaTiles скачивает недостающие тайлы вокруг точки.
// Ошибки отдельных тайлов не прерывают загрузку и учитываются в Result.Failed.
func (p *Prefetcher) DownloadAreaTiles(ctx context.Context, lat, lon float64) (Result, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Result{}, fmt.Errorf("неверные координаты: %f, %f", lat, lon)
	}

	coords := AreaTiles(lat, lon, p.cfg.RadiusKM, p.cfg.ZoomLevels)

	var cached, downloaded, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)

	for _, c := range coords {
		if ctx.Err() != nil {
			break
		}

		c := c
		g.Go(func() error {
			id := c.ID()

			ok, err := p.store.HasTile(ctx, id)
			if err != nil {
				p.log.Debug("Не удалось проверить тайл", "tile", id, "error", err)
				failed.Add(1)
				return nil
			}
			if ok {
				cached.Add(1)
				return nil
			}

			if err := p.fetch(ctx, c); err != nil {
				p.log.Debug("Не удалось скачать тайл", "tile", id, "error", err)
				failed.Add(1)
				return nil
			}
			downloaded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Total:      len(coords),
		Cached:     int(cached.Load()),
		Downloaded: int(downloaded.Load()),
		Failed:     int(failed.Load()),
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if p.cfg.MaxTiles > 0 && res.Downloaded > 0 {
		evicted, err := p.store.EvictTiles(ctx, p.cfg.MaxTiles)
		if err != nil {
			p.log.Warn("Не удалось очистить кэш тайлов", "error", err)
		}
		res.Evicted = evicted
	}

	p.log.Info("Загрузка тайлов завершена",
		"total", res.Total,
		"cached", res.Cached,
		"downloaded", res.Downloaded,
		"failed", res.Failed,
		"evicted", res.Evicted,
	)

	return res, nil
}

func (p *Prefetcher) fetch(ctx context.Context, c Coord) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.tileURL(c), nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	return p.store.PutTile(ctx, entity.TileRecord{
		ID:        c.ID(),
		Blob:      blob,
		CreatedAt: time.Now(),
	})
}

func (p *Prefetcher) tileURL(c Coord) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(c.Z),
		"{x}", strconv.Itoa(c.X),
		"{y}", strconv.Itoa(c.Y),
	).Replace(p.cfg.URL)
}

// ErrBadStatus - сервер тайлов ответил не 200
var ErrBadStatus = errors.New("unexpected tile server status")
