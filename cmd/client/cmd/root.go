package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client"
	"fieldsync/internal/app/client/config"
	"fieldsync/internal/utils/logger"
)

var (
	cfgFile   string
	debug     bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "FieldSync - офлайн-клиент сбора полевых данных",
	Long: `FieldSync хранит записи исследований локально и синхронизирует их
с сервером, когда появляется связь.

Изменения, сделанные офлайн, попадают в очередь и отправляются фоновым
обработчиком (fieldsync run) или вручную (fieldsync sync push).`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Дополнительный .env из флага имеет приоритет над найденным автоматически
	if cfgFile != "" {
		if err := godotenv.Overload(cfgFile); err != nil {
			return fmt.Errorf("ошибка загрузки %s: %w", cfgFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	// Логи идут в файл, чтобы не смешиваться с выводом команд
	var log *slog.Logger
	if debug {
		log = logger.New("local")
	} else {
		log = logger.NewWithFile(cfg.Env, cfg.LogFile)
	}

	app, err := client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	ctx := context.WithValue(cmd.Context(), types.ClientAppKey, app)
	ctx = context.WithValue(ctx, types.ConfigKey, cfg)
	ctx = context.WithValue(ctx, logKey, log)
	cmd.SetContext(ctx)

	return nil
}

func closeApp(cmd *cobra.Command, _ []string) error {
	app, err := types.App(cmd)
	if err != nil {
		return nil
	}
	return app.Close()
}

type loggerKey struct{}

var logKey = loggerKey{}

func loggerFrom(cmd *cobra.Command) *slog.Logger {
	if log, ok := cmd.Context().Value(logKey).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", ".env файл с настройками")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "писать отладочные логи в консоль")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера синхронизации (host:port)")

	// Команды будут добавлены в init() соответствующих файлов
}
