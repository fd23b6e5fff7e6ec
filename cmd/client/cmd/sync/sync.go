package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/daemon"
	"fieldsync/cmd/client/cmd/types"
	"fieldsync/cmd/client/cmd/ui"
	"fieldsync/internal/app/client"
)

var (
	viaDaemon  bool
	jsonOutput bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Синхронизация локальных записей с сервером.

Команды выполняются в текущем процессе или, с флагом --via-daemon,
передаются запущенному фоновому обработчику (fieldsync run).`,
}

var PushCmd = &cobra.Command{
	Use:   "push",
	Short: "Отправить неотправленные записи",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if viaDaemon {
			return trigger(cmd, client.CommandTriggerPush)
		}

		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		res, err := app.RunPush(ctx)
		if errors.Is(err, client.ErrOffline) {
			color.Yellow("Сервер недоступен, записи остаются в очереди")
			return nil
		}
		if res != nil {
			if jsonOutput {
				return ui.JSON(res)
			}
			ui.PushResult(res)
		}
		return err
	},
}

var PullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Загрузить записи с сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if viaDaemon {
			return trigger(cmd, client.CommandTriggerPull)
		}

		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		res, err := app.RunPull(ctx)
		if errors.Is(err, client.ErrOffline) {
			color.Yellow("Сервер недоступен, загрузка пропущена")
			return nil
		}
		if res != nil {
			if jsonOutput {
				return ui.JSON(res)
			}
			ui.PullResult(res)
		}
		return err
	},
}

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние очереди и последних циклов синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			st  *client.Status
			err error
		)

		if viaDaemon {
			cfg, cerr := types.Config(cmd)
			if cerr != nil {
				return cerr
			}
			st, err = daemon.New(cfg.ControlAddress).Status(cmd.Context())
		} else {
			app, aerr := types.App(cmd)
			if aerr != nil {
				return aerr
			}
			// связь проверяем явно, иначе статус всегда "онлайн"
			app.CheckConnectivity(cmd.Context())
			st, err = app.Status(cmd.Context())
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return ui.JSON(st)
		}
		ui.Status(st)
		return nil
	},
}

func trigger(cmd *cobra.Command, command client.Command) error {
	cfg, err := types.Config(cmd)
	if err != nil {
		return err
	}

	if err := daemon.New(cfg.ControlAddress).Command(cmd.Context(), command); err != nil {
		return err
	}

	fmt.Printf("Команда %s передана фоновому обработчику\n", command)
	return nil
}

func init() {
	SyncCmd.PersistentFlags().BoolVar(&viaDaemon, "via-daemon", false, "передать команду фоновому обработчику")
	SyncCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
}
