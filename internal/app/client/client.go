package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/singleflight"

	"fieldsync/internal/app/client/config"
	"fieldsync/internal/app/client/scheduler"
	"fieldsync/internal/app/client/store"
	"fieldsync/internal/app/client/tiles"
	"fieldsync/internal/domain/entity"
)

// Имена фоновых задач
const (
	TaskPullUpdates = "pull-updates"
	TaskPushPending = "push-pending"
)

var (
	// ErrOffline - движок знает, что сервер недоступен, цикл пропущен
	ErrOffline = errors.New("server is offline")
	// ErrNoToken - токен не сохранен
	ErrNoToken = errors.New("token not found")
)

// App - движок синхронизации: локальное хранилище, сервисы push/pull,
// планировщик фоновых задач и загрузчик тайлов.
type App struct {
	config    *config.Config
	log       *slog.Logger
	api       SyncAPI
	store     store.Store
	sync      *SyncService
	scheduler *scheduler.Scheduler
	tiles     *tiles.Prefetcher
	state     *stateFile

	online atomic.Bool
	phase  atomic.Value
	flight singleflight.Group
	mu     gosync.Mutex

	// pushRunner выполняет отложенную отправку. Фоновый обработчик
	// подменяет его, чтобы отправка шла через его очередь событий.
	pushRunner func(ctx context.Context) error
}

// Status - сводка состояния движка
type Status struct {
	Phase      Phase                `json:"phase"`
	Online     bool                 `json:"online"`
	Pending    map[entity.Table]int `json:"pending"`
	TotalQueue int                  `json:"total_queue"`
	Tiles      int                  `json:"tiles"`
	LastPush   time.Time            `json:"last_push"`
	LastPushOK bool                 `json:"last_push_ok"`
	LastPull   time.Time            `json:"last_pull"`
	LastPullOK bool                 `json:"last_pull_ok"`
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}

	// Инициализируем локальное хранилище (используем SQLite)
	var st store.Store
	sqliteStore, err := store.NewSQLiteStore(cfg.DataPath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		st = store.NewMemoryStore()
	} else {
		st = sqliteStore
	}

	app := newApp(cfg, log, httpCl, st)

	// Загружаем токен если он есть
	if token, err := app.GetToken(); err == nil && token != "" {
		httpCl.SetToken(token)
		log.Debug("Токен загружен из файла")
	}

	return app, nil
}

func newApp(cfg *config.Config, log *slog.Logger, api SyncAPI, st store.Store) *App {
	state, err := loadStateFile(cfg.StatePath)
	if err != nil {
		log.Warn("Не удалось загрузить состояние приложения", "error", err)
	}

	sched := scheduler.New(scheduler.Config{
		CheckInterval: cfg.SchedulerCheck,
	}, state, log)

	prefetcher := tiles.NewPrefetcher(tiles.Config{
		URL:           cfg.TileURL,
		ZoomLevels:    cfg.TileZoomLevels,
		RadiusKM:      cfg.TileRadiusKM,
		MaxTiles:      cfg.TileMaxCount,
		RatePerSecond: cfg.TileRatePerSecond,
		Concurrency:   cfg.TileConcurrency,
	}, st, &http.Client{Timeout: 30 * time.Second}, log)

	app := &App{
		config:    cfg,
		log:       log,
		api:       api,
		store:     st,
		scheduler: sched,
		tiles:     prefetcher,
		state:     state,
		sync: NewSyncService(api, st, SyncConfig{
			BatchSize:          cfg.BatchSize,
			PartialFailureMode: cfg.PartialFailureMode,
		}, log),
	}
	app.online.Store(true)
	app.phase.Store(PhaseIdle)
	sched.SetCondition(app.Online)

	return app
}

// Store возвращает локальное хранилище
func (a *App) Store() store.Store {
	return a.store
}

// Scheduler возвращает планировщик фоновых задач
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Online сообщает последнее известное состояние связи с сервером
func (a *App) Online() bool {
	return a.online.Load()
}

// CheckConnectivity опрашивает сервер и возвращает предыдущее и текущее состояние связи.
func (a *App) CheckConnectivity(ctx context.Context) (was, now bool) {
	err := a.api.HealthCheck(ctx)
	now = err == nil
	was = a.online.Swap(now)

	if was != now {
		if now {
			a.log.Info("Связь с сервером восстановлена")
		} else {
			a.log.Warn("Сервер недоступен", "error", err)
		}
	}
	return was, now
}

// EnsureOnline перепроверяет связь, если последнее известное состояние - офлайн.
func (a *App) EnsureOnline(ctx context.Context) bool {
	if a.Online() {
		return true
	}
	_, now := a.CheckConnectivity(ctx)
	return now
}

func (a *App) markOffline(err error) {
	if errors.Is(err, ErrUnavailable) && a.online.Swap(false) {
		a.log.Warn("Сервер недоступен, работаем офлайн", "error", err)
	}
}

// ==================== Record Operations ====================

// AddRecord сохраняет новую запись. Если сервер сразу подтвердил запись,
// она сохраняется со статусом synced, иначе pending и ставится задача
// отложенной отправки.
func (a *App) AddRecord(ctx context.Context, table entity.Table, rec entity.Record) (entity.Record, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	rec = rec.WithoutSyncFields()
	if rec.ID() == "" {
		rec["id"] = uuid.NewString()
	}
	if err := entity.ValidateRecord(table, rec); err != nil {
		return nil, err
	}

	rec = rec.WithStatus(a.confirm(ctx, table, rec))
	if err := a.store.Create(ctx, table, rec); err != nil {
		return nil, fmt.Errorf("ошибка сохранения записи: %w", err)
	}

	a.log.Debug("Запись создана", "table", table, "id", rec.ID(), "status", rec.Status())
	return rec, nil
}

// UpdateRecord накладывает partial на запись и сохраняет результат так же, как AddRecord.
func (a *App) UpdateRecord(ctx context.Context, table entity.Table, id string, partial entity.Record) (entity.Record, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, entity.ErrMissingID
	}

	existing, err := a.store.Get(ctx, table, id)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	if existing == nil {
		existing = entity.Record{}
	}

	merged := existing.Merge(partial.WithoutSyncFields()).WithoutSyncFields()
	merged["id"] = id
	if err := entity.ValidateRecord(table, merged); err != nil {
		return nil, err
	}

	merged = merged.WithStatus(a.confirm(ctx, table, merged))
	if err := a.store.Update(ctx, table, id, merged); err != nil {
		return nil, fmt.Errorf("ошибка обновления записи: %w", err)
	}

	return merged, nil
}

// confirm пробует сразу отправить запись на сервер и возвращает ее статус
func (a *App) confirm(ctx context.Context, table entity.Table, rec entity.Record) entity.SyncStatus {
	if a.Online() {
		_, err := a.api.PushBatch(ctx, table, []entity.Record{rec})
		if err == nil {
			return entity.StatusSynced
		}
		a.markOffline(err)
		a.log.Warn("Не удалось сохранить запись на сервере, сохраняем локально", "table", table, "error", err)
	}

	a.registerDeferredPush()
	return entity.StatusPending
}

func (a *App) GetRecord(ctx context.Context, table entity.Table, id string) (entity.Record, error) {
	return a.store.Get(ctx, table, id)
}

func (a *App) ListRecords(ctx context.Context, table entity.Table) ([]entity.Record, error) {
	return a.store.GetAll(ctx, table)
}

// DeleteRecord удаляет запись только локально
func (a *App) DeleteRecord(ctx context.Context, table entity.Table, id string) error {
	return a.store.Delete(ctx, table, id)
}

// ==================== Sync Operations ====================

// RunPush выполняет цикл отправки. Одновременные вызовы объединяются в один цикл.
func (a *App) RunPush(ctx context.Context) (*PushResult, error) {
	v, err, _ := a.flight.Do("push", func() (interface{}, error) {
		if !a.Online() {
			a.registerDeferredPush()
			return nil, ErrOffline
		}

		res, err := a.sync.Push(ctx)
		if res != nil && res.Unavailable > 0 {
			a.online.Store(false)
			a.registerDeferredPush()
		}

		ok := err == nil && res != nil && res.Failed == 0
		if err := a.state.Update(func(st *AppState) {
			st.LastPush = time.Now()
			st.LastPushOK = ok
		}); err != nil {
			a.log.Warn("Не удалось сохранить состояние", "error", err)
		}

		return res, err
	})
	if v == nil {
		return nil, err
	}
	return v.(*PushResult), err
}

// RunPull выполняет цикл загрузки. Одновременные вызовы объединяются в один цикл.
func (a *App) RunPull(ctx context.Context) (*PullResult, error) {
	v, err, _ := a.flight.Do("pull", func() (interface{}, error) {
		if !a.Online() {
			return nil, ErrOffline
		}

		res, err := a.sync.Pull(ctx)

		ok := err == nil && res != nil && len(res.Errors) == 0
		if err := a.state.Update(func(st *AppState) {
			st.LastPull = time.Now()
			st.LastPullOK = ok
		}); err != nil {
			a.log.Warn("Не удалось сохранить состояние", "error", err)
		}

		return res, err
	})
	if v == nil {
		return nil, err
	}
	return v.(*PullResult), err
}

// registerDeferredPush ставит разовую задачу отправки на момент появления связи
func (a *App) registerDeferredPush() {
	err := a.scheduler.RegisterOneShot(TaskPushPending, a.runDeferredPush)
	if err != nil && !errors.Is(err, scheduler.ErrAlreadyRegistered) {
		a.log.Warn("Не удалось зарегистрировать отложенную отправку", "error", err)
	}
}

// RestoreDeferredPush ставит отложенную отправку, если в очереди остались
// записи, например записанные другим процессом.
func (a *App) RestoreDeferredPush(ctx context.Context) (int, error) {
	pending, err := a.store.CountUnsynced(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета очереди: %w", err)
	}

	total := 0
	for _, n := range pending {
		total += n
	}
	if total > 0 {
		a.registerDeferredPush()
	}
	return total, nil
}

func (a *App) setPushRunner(fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pushRunner = fn
}

func (a *App) runDeferredPush(ctx context.Context) error {
	a.mu.Lock()
	run := a.pushRunner
	a.mu.Unlock()

	if run != nil {
		return run(ctx)
	}
	_, err := a.RunPush(ctx)
	return err
}

// DownloadTiles загружает тайлы карты вокруг точки
func (a *App) DownloadTiles(ctx context.Context, lat, lon float64) (tiles.Result, error) {
	return a.tiles.DownloadAreaTiles(ctx, lat, lon)
}

// Status возвращает сводку состояния движка
func (a *App) Status(ctx context.Context) (*Status, error) {
	pending, err := a.store.CountUnsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета очереди: %w", err)
	}

	tileCount, err := a.store.CountTiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета тайлов: %w", err)
	}

	total := 0
	for _, n := range pending {
		total += n
	}

	st := a.state.Snapshot()
	return &Status{
		Phase:      a.Phase(),
		Online:     a.Online(),
		Pending:    pending,
		TotalQueue: total,
		Tiles:      tileCount,
		LastPush:   st.LastPush,
		LastPushOK: st.LastPushOK,
		LastPull:   st.LastPull,
		LastPullOK: st.LastPullOK,
	}, nil
}

// Phase возвращает фазу жизненного цикла фонового обработчика
func (a *App) Phase() Phase {
	return a.phase.Load().(Phase)
}

func (a *App) setPhase(p Phase) {
	a.phase.Store(p)
	a.log.Debug("Фаза фонового обработчика", "phase", string(p))
}

// ==================== Token ====================

// GetToken возвращает сохраненный токен
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w. Выполните: fieldsync auth token", ErrNoToken)
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	return string(tokenBytes), nil
}

// SaveToken сохраняет токен аутентификации
func (a *App) SaveToken(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}

	a.api.SetToken(token)
	return nil
}

// ClearToken удаляет токен
func (a *App) ClearToken() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.Remove(a.config.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}

	a.api.SetToken("")
	return nil
}

func (a *App) Close() error {
	a.log.Info("Завершение работы клиента...")
	return a.store.Close()
}
