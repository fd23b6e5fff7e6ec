package tiles

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/daemon"
	"fieldsync/cmd/client/cmd/types"
)

var (
	lat, lon  float64
	viaDaemon bool
)

// TilesCmd - родительская команда для работы с тайлами карты
var TilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Тайлы карты для работы офлайн",
}

var DownloadCmd = &cobra.Command{
	Use:     "download",
	Short:   "Загрузить тайлы вокруг точки",
	Long:    `Загружает тайлы настроенных уровней масштаба в радиусе TILE_RADIUS_KM. Уже сохраненные тайлы повторно не скачиваются.`,
	Example: `  fieldsync tiles download --lat 55.7558 --lon 37.6173`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if viaDaemon {
			cfg, err := types.Config(cmd)
			if err != nil {
				return err
			}
			if err := daemon.New(cfg.ControlAddress).Tiles(cmd.Context(), lat, lon); err != nil {
				return err
			}
			fmt.Println("Загрузка тайлов передана фоновому обработчику")
			return nil
		}

		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
		defer cancel()

		fmt.Printf("Загрузка тайлов вокруг %.5f, %.5f...\n", lat, lon)
		res, err := app.DownloadTiles(ctx, lat, lon)
		if err != nil {
			return err
		}

		fmt.Printf("Всего: %d, уже в кэше: %d, загружено: %s", res.Total, res.Cached, color.GreenString("%d", res.Downloaded))
		if res.Failed > 0 {
			fmt.Printf(", ошибок: %s", color.RedString("%d", res.Failed))
		}
		if res.Evicted > 0 {
			fmt.Printf(", вытеснено старых: %d", res.Evicted)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	DownloadCmd.Flags().Float64Var(&lat, "lat", 0, "широта центра")
	DownloadCmd.Flags().Float64Var(&lon, "lon", 0, "долгота центра")
	DownloadCmd.Flags().BoolVar(&viaDaemon, "via-daemon", false, "передать загрузку фоновому обработчику")
	_ = DownloadCmd.MarkFlagRequired("lat")
	_ = DownloadCmd.MarkFlagRequired("lon")
}
