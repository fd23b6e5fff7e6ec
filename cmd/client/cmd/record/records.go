package record

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/domain/entity"
)

var (
	tableName  string
	data       string
	jsonOutput bool
)

// RecordCmd - родительская команда для всех операций с записями
var RecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Управление записями",
	Long: `Создание, просмотр, обновление и удаление записей локального хранилища.

Записи сохраняются локально и получают статус синхронизации:
synced - сервер подтвердил запись, pending - ждет отправки, error - отправка не удалась.`,
}

func table() (entity.Table, error) {
	return entity.Lookup(tableName)
}

func parseData() (entity.Record, error) {
	if data == "" {
		return entity.Record{}, nil
	}

	var rec entity.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("данные должны быть JSON-объектом: %w", err)
	}
	return rec, nil
}

func init() {
	RecordCmd.PersistentFlags().StringVarP(&tableName, "table", "t", string(entity.TableResearches), "таблица сущностей")
	RecordCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
}
