package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client"
	"fieldsync/internal/app/client/api"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Запустить фоновый обработчик",
	Long: `Запускает фоновый обработчик синхронизации:
	1. Загружает оболочку приложения в кэш (install)
	2. Поднимает API управления и регистрирует периодические задачи (activate)
	3. Отправляет и загружает изменения по расписанию и при появлении связи

Остановка по Ctrl+C или SIGTERM.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		cfg, err := types.Config(cmd)
		if err != nil {
			return err
		}
		log := loggerFrom(cmd)

		manifest, err := client.LoadShellManifest(cfg.ShellManifest)
		if err != nil {
			return err
		}
		shell := client.NewShellCache(cfg.ShellCacheDir, cfg.BaseURL(), manifest, log)

		worker := client.NewWorker(app, shell, log)
		worker.SetControlServer(api.NewServer(cfg.ControlAddress, api.New(worker, app, shell, log), log))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		color.Green("Фоновый обработчик запущен, API управления: http://%s", cfg.ControlAddress)
		fmt.Printf("Логи: %s\n", cfg.LogFile)

		if err := worker.Run(ctx); err != nil {
			return fmt.Errorf("ошибка фонового обработчика: %w", err)
		}

		color.Yellow("Фоновый обработчик остановлен")
		return nil
	},
}
