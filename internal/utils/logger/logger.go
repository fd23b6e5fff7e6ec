package logger

import (
	"io"
	"os"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"

	"fieldsync/internal/app/server/config"
)

// New создает логгер под окружение: local - цветной текст,
// dev - JSON с debug, prod - JSON с info.
func New(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

// NewWithFile пишет логи в файл с ротацией. Используется фоновым режимом клиента.
// Пустой путь - вывод в stdout.
func NewWithFile(env, path string) *slog.Logger {
	if path == "" {
		return New(env)
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // МБ
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	// в файл пишем JSON даже локально
	if env == config.EnvProd {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newLogger(env string, w io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = setupPrettySlog()
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
