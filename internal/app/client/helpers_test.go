package client

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"

	"fieldsync/internal/app/client/config"
	"fieldsync/internal/domain/entity"
)

// MockSyncAPI is a mock implementation of the SyncAPI interface for testing
type MockSyncAPI struct {
	mock.Mock
}

func (m *MockSyncAPI) SetToken(token string) {
	m.Called(token)
}

func (m *MockSyncAPI) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSyncAPI) PushBatch(ctx context.Context, table entity.Table, records []entity.Record) (*BatchAck, error) {
	args := m.Called(ctx, table, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchAck), args.Error(1)
}

func (m *MockSyncAPI) FetchEntities(ctx context.Context, table entity.Table, cursor string) (*EntityPage, error) {
	args := m.Called(ctx, table, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EntityPage), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, serverAddress string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		Env:                "local",
		ServerAddress:      serverAddress,
		ConfigDir:          dir,
		DataPath:           filepath.Join(dir, "local.db"),
		TokenPath:          filepath.Join(dir, "token"),
		StatePath:          filepath.Join(dir, "state.json"),
		BatchSize:          50,
		PartialFailureMode: config.PartialFailureBatch,
		PullInterval:       24 * time.Hour,
		PushInterval:       24 * time.Hour,
		SchedulerCheck:     time.Hour,
		ConnectivityCheck:  time.Hour,
		ShellCacheDir:      filepath.Join(dir, "shell"),
		TileZoomLevels:     []int{14},
		TileRadiusKM:       1,
		TileRatePerSecond:  100,
		TileConcurrency:    2,
	}
}

func pendingRecord(id string, fields ...any) entity.Record {
	rec := entity.Record{"id": id, entity.SyncStatusField: string(entity.StatusPending)}
	for i := 0; i+1 < len(fields); i += 2 {
		rec[fields[i].(string)] = fields[i+1]
	}
	return rec
}
