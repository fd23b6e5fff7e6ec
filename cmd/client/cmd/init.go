package cmd

import (
	"fieldsync/cmd/client/cmd/auth"
	"fieldsync/cmd/client/cmd/record"
	"fieldsync/cmd/client/cmd/sync"
	"fieldsync/cmd/client/cmd/tiles"
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Добавляем команды работы с токеном
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.TokenCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)

	// Добавляем команды работы с записями
	rootCmd.AddCommand(record.RecordCmd)
	record.RecordCmd.AddCommand(record.CreateCmd)
	record.RecordCmd.AddCommand(record.GetCmd)
	record.RecordCmd.AddCommand(record.ListCmd)
	record.RecordCmd.AddCommand(record.UpdateCmd)
	record.RecordCmd.AddCommand(record.DeleteCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.PushCmd)
	sync.SyncCmd.AddCommand(sync.PullCmd)
	sync.SyncCmd.AddCommand(sync.StatusCmd)

	rootCmd.AddCommand(tiles.TilesCmd)
	tiles.TilesCmd.AddCommand(tiles.DownloadCmd)
}
