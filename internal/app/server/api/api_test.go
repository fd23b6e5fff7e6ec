package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"fieldsync/internal/app/server/config"
	"fieldsync/internal/domain/entity"
	"fieldsync/internal/handler/middleware/auth"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListEntities(ctx context.Context, table entity.Table, after string, limit int) ([]entity.Record, error) {
	args := m.Called(ctx, table, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Record), args.Error(1)
}

func (m *MockRepository) UpsertEntities(ctx context.Context, table entity.Table, records []entity.Record) (int, error) {
	args := m.Called(ctx, table, records)
	return args.Int(0), args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testServer(t *testing.T, repo *MockRepository, db Pinger, hashes []string) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth.TokenHashes = hashes
	cfg.Sync.PageSize = 100

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(newMux(repo, db, cfg, log))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token, body string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestAPI_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{name: "database up", wantStatus: http.StatusOK},
		{name: "database down", pingErr: errors.New("refused"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, new(MockRepository), pinger{err: tt.pingErr}, nil)

			resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/health", "", "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAPI_SyncRequiresToken(t *testing.T) {
	hash, err := auth.HashToken("s3cret")
	require.NoError(t, err)

	repo := new(MockRepository)
	repo.On("ListEntities", mock.Anything, entity.TableUsers, "", 101).
		Return([]entity.Record{{"id": "u1", "name": "Ann"}}, nil)

	srv := testServer(t, repo, pinger{}, []string{hash})

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/sync?entity=users", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/sync?entity=users", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/sync?entity=users", "s3cret", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"users":[{"id":"u1","name":"Ann"}]}`, body)
}

func TestAPI_PatchRejectsInvalidRecords(t *testing.T) {
	repo := new(MockRepository)
	repo.On("UpsertEntities", mock.Anything, entity.TableResearches, mock.MatchedBy(func(recs []entity.Record) bool {
		return len(recs) == 1 && recs[0].ID() == "r1"
	})).Return(1, nil)

	srv := testServer(t, repo, pinger{}, nil)

	resp, body := do(t, http.MethodPatch, srv.URL+"/api/sync?entity=researches", "",
		`[{"id":"r1","title":"Soil","_syncStatus":"pending"},{"id":"r2"}]`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, `"processed":1`)
	assert.Contains(t, body, `"id":"r2"`)
	repo.AssertExpectations(t)
}
