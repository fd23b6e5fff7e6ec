package types

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/app/client"
	"fieldsync/internal/app/client/config"
)

type ctxKey string

const (
	ClientAppKey ctxKey = "app"
	ConfigKey    ctxKey = "config"
)

// App достает движок из контекста команды
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

// Config достает конфигурацию клиента из контекста команды
func Config(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(ConfigKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("конфигурация не загружена")
	}
	return cfg, nil
}
