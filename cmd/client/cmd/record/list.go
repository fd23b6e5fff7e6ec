package record

import (
	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/cmd/client/cmd/ui"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список записей таблицы",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		t, err := table()
		if err != nil {
			return err
		}

		records, err := app.ListRecords(cmd.Context(), t)
		if err != nil {
			return err
		}

		if jsonOutput {
			return ui.JSON(records)
		}
		ui.Records(t, records)
		return nil
	},
}
