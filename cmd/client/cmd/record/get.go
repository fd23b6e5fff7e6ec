package record

import (
	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/cmd/client/cmd/ui"
)

var GetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Показать запись",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		t, err := table()
		if err != nil {
			return err
		}

		rec, err := app.GetRecord(cmd.Context(), t, args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return ui.JSON(rec)
		}
		ui.Record(t, rec)
		return nil
	},
}
