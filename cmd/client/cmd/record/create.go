package record

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/cmd/client/cmd/ui"
	"fieldsync/internal/domain/entity"
)

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Создать запись",
	Example: `  fieldsync record create -t researches -d '{"title":"Почвы 2024"}'
  fieldsync record create -t survey_answers -d '{"id":"a1","survey_id":"s1","field_id":"f1","value":42}'`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		t, err := table()
		if err != nil {
			return err
		}
		rec, err := parseData()
		if err != nil {
			return err
		}

		created, err := app.AddRecord(cmd.Context(), t, rec)
		if err != nil {
			return err
		}

		if jsonOutput {
			return ui.JSON(created)
		}
		ui.Record(t, created)
		if created.Status() == entity.StatusPending {
			color.Yellow("Сервер недоступен, запись сохранена локально и будет отправлена позже")
		}
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVarP(&data, "data", "d", "", "поля записи в JSON")
	_ = CreateCmd.MarkFlagRequired("data")
}
