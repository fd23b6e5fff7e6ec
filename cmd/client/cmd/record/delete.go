package record

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/cmd/client/cmd/types"
)

var DeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Удалить запись локально",
	Long:  `Запись удаляется только из локального хранилища. На сервер удаление не отправляется.`,
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

		if err := app.DeleteRecord(cmd.Context(), t, args[0]); err != nil {
			return err
		}

		fmt.Printf("Запись %s удалена\n", args[0])
		return nil
	},
}
