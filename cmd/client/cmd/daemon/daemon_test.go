package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/app/client"
)

func TestClient(t *testing.T) {
	var gotCommand string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/commands":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotCommand = body["command"]
			if gotCommand != string(client.CommandTriggerPush) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail":"unknown command"}`))
				return
			}
			w.WriteHeader(http.StatusAccepted)
		case "/api/v1/status":
			_, _ = w.Write([]byte(`{"phase":"active","online":true,"total_queue":3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(strings.TrimPrefix(srv.URL, "http://"))
	ctx := context.Background()

	require.NoError(t, c.Command(ctx, client.CommandTriggerPush))
	assert.Equal(t, "TRIGGER_PUSH", gotCommand)

	err := c.Command(ctx, client.Command("NOPE"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.PhaseActive, st.Phase)
	assert.Equal(t, 3, st.TotalQueue)

	assert.Error(t, c.Tiles(ctx, 1, 2))
}

func TestClient_Unavailable(t *testing.T) {
	c := New("127.0.0.1:1")
	err := c.Command(context.Background(), client.CommandTriggerPull)
	assert.Error(t, err)
}
