package client

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"fieldsync/internal/app/client/scheduler"
)

// Phase - фаза жизненного цикла фонового обработчика
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseInstalling Phase = "installing"
	PhaseInstalled  Phase = "installed"
	PhaseActivating Phase = "activating"
	PhaseActive     Phase = "active"
	PhaseStopped    Phase = "stopped"
)

// Command - команда, которую интерфейс посылает фоновому обработчику
type Command string

const (
	CommandTriggerPull Command = "TRIGGER_PULL"
	CommandTriggerPush Command = "TRIGGER_PUSH"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotActive      = errors.New("worker is not active")
)

func (c Command) Validate() error {
	switch c {
	case CommandTriggerPull, CommandTriggerPush:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, string(c))
}

// ControlServer - слушатель команд от интерфейса, запускается при активации
type ControlServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type eventKind int

const (
	eventPush eventKind = iota
	eventPull
	eventOnline
)

type event struct {
	kind eventKind
	// explicit - команда от интерфейса, перед ней связь перепроверяется
	explicit bool
	done     chan error
}

// Worker - фоновый контекст выполнения движка. Все триггеры синхронизации
// попадают в одну очередь событий и обрабатываются по одному.
type Worker struct {
	app     *App
	shell   *ShellCache
	control ControlServer
	log     *slog.Logger

	events chan event
	wg     gosync.WaitGroup
	cancel context.CancelFunc
	mu     gosync.Mutex
}

func NewWorker(app *App, shell *ShellCache, log *slog.Logger) *Worker {
	w := &Worker{
		app:    app,
		shell:  shell,
		log:    log.With(slog.String("component", "worker")),
		events: make(chan event, 16),
	}

	// отложенная отправка из планировщика идет через очередь событий
	app.setPushRunner(func(ctx context.Context) error {
		return w.dispatch(ctx, eventPush)
	})
	return w
}

// SetControlServer задает слушатель команд, который стартует в Activate
func (w *Worker) SetControlServer(srv ControlServer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.control = srv
}

// Run устанавливает и активирует обработчик, затем обслуживает очередь
// событий до отмены контекста.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	if err := w.Install(ctx); err != nil {
		return err
	}
	if err := w.Activate(ctx); err != nil {
		return err
	}

	w.loop(ctx)
	w.stop()
	return nil
}

// Install загружает оболочку приложения в кэш. Ошибка загрузки не мешает
// активации: продолжаем с предыдущим содержимым кэша.
func (w *Worker) Install(ctx context.Context) error {
	if p := w.app.Phase(); p != PhaseIdle {
		return fmt.Errorf("установка невозможна в фазе %s", p)
	}
	w.app.setPhase(PhaseInstalling)

	if w.shell != nil {
		n, err := w.shell.Prefetch(ctx)
		if err != nil {
			w.log.Warn("Не удалось загрузить оболочку, используем прежний кэш", "error", err)
		} else {
			w.log.Info("Оболочка загружена в кэш", "resources", n)
		}
	}

	w.app.setPhase(PhaseInstalled)
	return nil
}

// Activate запускает слушатель команд, монитор связи и планировщик
// и регистрирует периодические задачи.
func (w *Worker) Activate(ctx context.Context) error {
	if p := w.app.Phase(); p != PhaseInstalled {
		return fmt.Errorf("активация невозможна в фазе %s", p)
	}
	w.app.setPhase(PhaseActivating)

	w.mu.Lock()
	control := w.control
	w.mu.Unlock()

	if control != nil {
		if err := control.Start(); err != nil {
			w.app.setPhase(PhaseStopped)
			return fmt.Errorf("ошибка запуска API управления: %w", err)
		}
	}

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.monitor(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.app.scheduler.Run(ctx)
	}()

	w.registerPeriodic()

	// очередь могла заполниться в другом процессе, пока обработчик не работал
	if n, err := w.app.RestoreDeferredPush(ctx); err != nil {
		w.log.Warn("Не удалось проверить очередь отправки", "error", err)
	} else if n > 0 {
		w.log.Info("В очереди есть неотправленные записи", "count", n)
	}

	w.app.setPhase(PhaseActive)
	w.log.Info("Фоновый обработчик активен")
	return nil
}

func (w *Worker) registerPeriodic() {
	tasks := []struct {
		name     string
		interval time.Duration
		kind     eventKind
	}{
		{TaskPullUpdates, w.app.config.PullInterval, eventPull},
		{TaskPushPending, w.app.config.PushInterval, eventPush},
	}

	for _, t := range tasks {
		if w.app.scheduler.Registered(t.name) {
			w.log.Debug("Периодическая задача уже зарегистрирована", "task", t.name)
			continue
		}

		kind := t.kind
		err := w.app.scheduler.RegisterRecurring(t.name, t.interval, func(ctx context.Context) error {
			return w.dispatch(ctx, kind)
		})
		if err != nil && !errors.Is(err, scheduler.ErrAlreadyRegistered) {
			w.log.Warn("Не удалось зарегистрировать периодическую задачу", "task", t.name, "error", err)
		}
	}
}

// Post ставит команду в очередь и не ждет ее выполнения
func (w *Worker) Post(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if w.app.Phase() != PhaseActive {
		return ErrNotActive
	}

	kind := eventPull
	if cmd == CommandTriggerPush {
		kind = eventPush
	}

	select {
	case w.events <- event{kind: kind, explicit: true}:
		return nil
	default:
		// очередь переполнена, такой же цикл уже ждет выполнения
		w.log.Debug("Очередь событий заполнена, команда отброшена", "command", string(cmd))
		return nil
	}
}

// HandleCommand выполняет команду синхронно
func (w *Worker) HandleCommand(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	w.app.EnsureOnline(ctx)

	switch cmd {
	case CommandTriggerPush:
		_, err := w.app.RunPush(ctx)
		return err
	default:
		_, err := w.app.RunPull(ctx)
		return err
	}
}

// dispatch ставит событие в очередь и ждет результата
func (w *Worker) dispatch(ctx context.Context, kind eventKind) error {
	ev := event{kind: kind, done: make(chan error, 1)}

	select {
	case w.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ev.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			if ev.explicit {
				w.app.EnsureOnline(ctx)
			}
			err := w.handle(ctx, ev.kind)
			if ev.done != nil {
				ev.done <- err
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, kind eventKind) error {
	switch kind {
	case eventPush:
		_, err := w.app.RunPush(ctx)
		if err != nil && !errors.Is(err, ErrOffline) {
			w.log.Error("Ошибка отправки изменений", "error", err)
		}
		return err

	case eventPull:
		_, err := w.app.RunPull(ctx)
		if err != nil && !errors.Is(err, ErrOffline) {
			w.log.Error("Ошибка загрузки изменений", "error", err)
		}
		return err

	case eventOnline:
		w.log.Info("Сервер доступен, синхронизируем")
		if _, err := w.app.RunPush(ctx); err != nil {
			w.log.Warn("Отправка после восстановления связи не выполнена", "error", err)
		}
		if _, err := w.app.RunPull(ctx); err != nil {
			w.log.Warn("Загрузка после восстановления связи не выполнена", "error", err)
		}
		w.app.scheduler.Notify()
		return nil
	}

	return nil
}

// monitor периодически проверяет связь и сообщает о переходе офлайн -> онлайн.
// Первая успешная проверка тоже считается переходом: прежнее состояние неизвестно.
func (w *Worker) monitor(ctx context.Context) {
	interval := w.app.config.ConnectivityCheck
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	first := true
	check := func() {
		was, now := w.app.CheckConnectivity(ctx)
		if now && (!was || first) {
			select {
			case w.events <- event{kind: eventOnline}:
			case <-ctx.Done():
			}
		}
		first = false
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Stop останавливает обработчик, запущенный через Run
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (w *Worker) stop() {
	w.wg.Wait()

	w.mu.Lock()
	control := w.control
	w.mu.Unlock()

	if control != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := control.Shutdown(ctx); err != nil {
			w.log.Warn("Ошибка остановки API управления", "error", err)
		}
	}

	w.app.setPhase(PhaseStopped)
	w.log.Info("Фоновый обработчик остановлен")
}
