// Package scheduler запускает фоновые задачи движка синхронизации:
// периодические (не чаще заданного интервала) и разовые отложенные,
// которые выполняются, когда появляется связь.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

const (
	DefaultCheckInterval      = time.Minute
	DefaultMaxOneShotAttempts = 3
)

// ErrAlreadyRegistered возвращается при повторной регистрации задачи с тем же именем
var ErrAlreadyRegistered = errors.New("task already registered")

// Handler - обработчик задачи
type Handler func(ctx context.Context) error

// TaskScheduler - абстракция над платформенным планировщиком фоновых задач
type TaskScheduler interface {
	// RegisterRecurring регистрирует периодическую задачу
	RegisterRecurring(name string, minInterval time.Duration, h Handler) error

	// RegisterOneShot регистрирует разовую задачу, которая выполнится,
	// когда будет выполнено условие запуска (есть связь)
	RegisterOneShot(name string, h Handler) error

	// Registered сообщает, зарегистрирована ли периодическая задача
	Registered(name string) bool
}

// RunStore хранит время последнего запуска периодических задач между перезапусками
type RunStore interface {
	LastRun(name string) (time.Time, bool)
	SetLastRun(name string, t time.Time) error
}

type Config struct {
	CheckInterval      time.Duration
	MaxOneShotAttempts int
}

type recurringTask struct {
	name        string
	minInterval time.Duration
	handler     Handler
}

type oneShotTask struct {
	name     string
	handler  Handler
	attempts int
	seq      int
}

// Scheduler - реализация TaskScheduler на тикере
type Scheduler struct {
	log  *slog.Logger
	runs RunStore
	cfg  Config

	mu        sync.Mutex
	condition func() bool
	recurring map[string]*recurringTask
	oneShot   map[string]*oneShotTask
	seq       int

	// tickMu гарантирует, что задачи выполняются по одной
	tickMu sync.Mutex
	notify chan struct{}
	now    func() time.Time
}

var _ TaskScheduler = (*Scheduler)(nil)

func New(cfg Config, runs RunStore, log *slog.Logger) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.MaxOneShotAttempts <= 0 {
		cfg.MaxOneShotAttempts = DefaultMaxOneShotAttempts
	}
	if runs == nil {
		runs = NewMemoryRunStore()
	}

	return &Scheduler{
		log:       log.With(slog.String("component", "scheduler")),
		runs:      runs,
		cfg:       cfg,
		recurring: make(map[string]*recurringTask),
		oneShot:   make(map[string]*oneShotTask),
		notify:    make(chan struct{}, 1),
		now:       time.Now,
	}
}

// SetCondition задает условие запуска разовых задач. nil - выполнять всегда.
func (s *Scheduler) SetCondition(cond func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.condition = cond
}

func (s *Scheduler) RegisterRecurring(name string, minInterval time.Duration, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recurring[name]; ok {
		return ErrAlreadyRegistered
	}

	s.recurring[name] = &recurringTask{name: name, minInterval: minInterval, handler: h}

	// отсчет интервала идет от первой регистрации
	if _, ok := s.runs.LastRun(name); !ok {
		if err := s.runs.SetLastRun(name, s.now()); err != nil {
			s.log.Warn("Не удалось сохранить время регистрации задачи", "task", name, "error", err)
		}
	}

	s.log.Debug("Зарегистрирована периодическая задача",
		"task", name, "min_interval", minInterval.String())
	return nil
}

func (s *Scheduler) RegisterOneShot(name string, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.oneShot[name]; ok {
		return ErrAlreadyRegistered
	}

	s.seq++
	s.oneShot[name] = &oneShotTask{name: name, handler: h, seq: s.seq}

	s.log.Debug("Зарегистрирована разовая задача", "task", name)
	return nil
}

func (s *Scheduler) Registered(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recurring[name]
	return ok
}

// PendingOneShot сообщает, ожидает ли разовая задача запуска
func (s *Scheduler) PendingOneShot(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.oneShot[name]
	return ok
}

// Notify просит планировщик проверить разовые задачи, не дожидаясь тикера.
// Не блокирует.
func (s *Scheduler) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run обслуживает тикер и уведомления до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.log.Info("Планировщик запущен", "check_interval", s.cfg.CheckInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Планировщик остановлен")
			return
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.notify:
			s.RunOneShots(ctx)
		}
	}
}

// Tick выполняет просроченные периодические задачи, затем разовые.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	for _, task := range s.dueRecurring() {
		if ctx.Err() != nil {
			return
		}

		started := s.now()
		if err := task.handler(ctx); err != nil {
			s.log.Error("Ошибка выполнения периодической задачи", "task", task.name, "error", err)
		}
		if err := s.runs.SetLastRun(task.name, started); err != nil {
			s.log.Warn("Не удалось сохранить время запуска задачи", "task", task.name, "error", err)
		}
	}

	s.runOneShots(ctx)
}

// RunOneShots выполняет ожидающие разовые задачи, если условие запуска выполнено.
func (s *Scheduler) RunOneShots(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.runOneShots(ctx)
}

func (s *Scheduler) runOneShots(ctx context.Context) {
	s.mu.Lock()
	cond := s.condition
	tasks := make([]*oneShotTask, 0, len(s.oneShot))
	for _, t := range s.oneShot {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	if len(tasks) == 0 {
		return
	}
	if cond != nil && !cond() {
		s.log.Debug("Условие запуска не выполнено, разовые задачи отложены", "count", len(tasks))
		return
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].seq < tasks[j].seq })

	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}

		// сначала снимаем регистрацию: обработчик может зарегистрировать задачу заново
		s.mu.Lock()
		delete(s.oneShot, task.name)
		s.mu.Unlock()

		err := task.handler(ctx)
		if err == nil {
			s.log.Debug("Разовая задача выполнена", "task", task.name)
			continue
		}

		task.attempts++
		if task.attempts >= s.cfg.MaxOneShotAttempts {
			s.log.Warn("Разовая задача снята после исчерпания попыток",
				"task", task.name, "attempts", task.attempts, "error", err)
			continue
		}

		s.log.Warn("Ошибка выполнения разовой задачи, повторим позже",
			"task", task.name, "attempts", task.attempts, "error", err)

		s.mu.Lock()
		if _, ok := s.oneShot[task.name]; !ok {
			s.oneShot[task.name] = task
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) dueRecurring() []*recurringTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []*recurringTask
	for _, t := range s.recurring {
		last, ok := s.runs.LastRun(t.name)
		if !ok || now.Sub(last) >= t.minInterval {
			due = append(due, t)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })
	return due
}

// MemoryRunStore - RunStore без сохранения на диск
type MemoryRunStore struct {
	mu   sync.Mutex
	runs map[string]time.Time
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]time.Time)}
}

func (m *MemoryRunStore) LastRun(name string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.runs[name]
	return t, ok
}

func (m *MemoryRunStore) SetLastRun(name string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[name] = t
	return nil
}
