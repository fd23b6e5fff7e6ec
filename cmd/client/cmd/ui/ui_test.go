package ui

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"fieldsync/internal/domain/entity"
)

func TestSyncStatus(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		status entity.SyncStatus
		want   string
	}{
		{entity.StatusSynced, "synced"},
		{entity.StatusPending, "pending"},
		{entity.StatusError, "error"},
		{"", "-"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SyncStatus(tt.status))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Иссле...", truncate("Исследование", 8))
}
