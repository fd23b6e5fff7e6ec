package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd - родительская команда для всех операций с токеном доступа
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Токен доступа к серверу",
	Long:  `Сохранение и удаление bearer-токена, с которым клиент обращается к серверу синхронизации.`,
}
