package record

import (
	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/cmd/client/cmd/ui"
)

var UpdateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Обновить поля записи",
	Long:    `Переданные поля накладываются на сохраненную запись, остальные поля не меняются.`,
	Example: `  fieldsync record update 5f1c... -t researches -d '{"description":"второй сезон"}'`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		t, err := table()
		if err != nil {
			return err
		}
		partial, err := parseData()
		if err != nil {
			return err
		}

		rec, err := app.UpdateRecord(cmd.Context(), t, args[0], partial)
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

func init() {
	UpdateCmd.Flags().StringVarP(&data, "data", "d", "", "изменяемые поля в JSON")
	_ = UpdateCmd.MarkFlagRequired("data")
}
