package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/domain/entity"
)

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc) *httpClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := testConfig(t, strings.TrimPrefix(srv.URL, "http://"))
	cl, err := NewHTTPClient(cfg, discardLogger())
	require.NoError(t, err)
	return cl
}

func TestHTTPClient_PushBatch(t *testing.T) {
	var gotAuth, gotEntity string
	var gotBody []entity.Record

	cl := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/sync", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotEntity = r.URL.Query().Get("entity")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(BatchAck{Status: "Ok", Processed: len(gotBody)})
	})
	cl.SetToken("secret")

	ack, err := cl.PushBatch(context.Background(), entity.TableUsers, []entity.Record{{"id": "u1"}, {"id": "u2"}})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "users", gotEntity)
	assert.Len(t, gotBody, 2)
	assert.Equal(t, 2, ack.Processed)
}

func TestHTTPClient_PushBatchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantAck bool
	}{
		{
			name:    "rejected records",
			status:  http.StatusUnprocessableEntity,
			body:    `{"status":"Partial","processed":1,"failed":1,"rejected":[{"id":"u2","error":"bad"}]}`,
			wantErr: ErrBatchRejected,
			wantAck: true,
		},
		{
			name:    "validation without ack",
			status:  http.StatusUnprocessableEntity,
			body:    `{"title":"Unprocessable Entity","detail":"unknown entity"}`,
			wantErr: ErrServerStatus,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"db down"}`,
			wantErr: ErrServerStatus,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			wantErr: ErrServerStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			ack, err := cl.PushBatch(context.Background(), entity.TableUsers, []entity.Record{{"id": "u1"}})
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantAck {
				require.NotNil(t, ack)
				assert.Equal(t, "u2", ack.Rejected[0].ID)
			} else {
				assert.Nil(t, ack)
			}
		})
	}
}

func TestHTTPClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	cl, err := NewHTTPClient(testConfig(t, addr), discardLogger())
	require.NoError(t, err)

	_, err = cl.PushBatch(context.Background(), entity.TableUsers, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, cl.HealthCheck(context.Background()), ErrUnavailable)
}

func TestHTTPClient_FetchEntities(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantIDs    []string
		wantCursor string
	}{
		{
			name:       "object shape",
			body:       `{"users":[{"id":"u1"},{"id":"u2"}],"next_cursor":"u2"}`,
			wantIDs:    []string{"u1", "u2"},
			wantCursor: "u2",
		},
		{
			name:    "bare array",
			body:    `[{"id":"u3"}]`,
			wantIDs: []string{"u3"},
		},
		{
			name: "empty object",
			body: `{"users":null}`,
		},
		{
			name: "empty body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCursor string
			cl := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				gotCursor = r.URL.Query().Get("cursor")
				_, _ = w.Write([]byte(tt.body))
			})

			page, err := cl.FetchEntities(context.Background(), entity.TableUsers, "abc")
			require.NoError(t, err)
			assert.Equal(t, "abc", gotCursor)
			assert.Equal(t, tt.wantCursor, page.NextCursor)

			var ids []string
			for _, r := range page.Records {
				ids = append(ids, r.ID())
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestHTTPClient_HealthCheck(t *testing.T) {
	healthy := true
	cl := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	assert.NoError(t, cl.HealthCheck(context.Background()))

	healthy = false
	assert.ErrorIs(t, cl.HealthCheck(context.Background()), ErrServerStatus)
}
