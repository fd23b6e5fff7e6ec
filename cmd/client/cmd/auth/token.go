package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fieldsync/cmd/client/cmd/types"
)

var tokenValue string

var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Сохранить токен доступа",
	Long: `Сохраняет bearer-токен для запросов к серверу.

Без флага --value токен запрашивается без отображения ввода.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		token := tokenValue
		if token == "" {
			fmt.Print("Токен: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("ошибка чтения токена: %w", err)
			}
			token = string(raw)
		}

		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("токен не может быть пустым")
		}

		if err := app.SaveToken(token); err != nil {
			return err
		}

		color.Green("✓ Токен сохранен")
		return nil
	},
}

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Удалить сохраненный токен",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if err := app.ClearToken(); err != nil {
			return err
		}

		fmt.Println("Токен удален")
		return nil
	},
}

func init() {
	TokenCmd.Flags().StringVar(&tokenValue, "value", "", "токен (по умолчанию запрашивается интерактивно)")
}
