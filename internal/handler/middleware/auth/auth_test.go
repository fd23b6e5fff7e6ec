package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

func hash(t *testing.T, token string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuth_Validate(t *testing.T) {
	a := New([]string{hash(t, "field-token"), " "}, slog.Default())

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid", header: "Bearer field-token"},
		{name: "valid cached", header: "Bearer field-token"},
		{name: "missing", header: "", wantErr: ErrNoToken},
		{name: "wrong scheme", header: "Basic field-token", wantErr: ErrNoToken},
		{name: "wrong token", header: "Bearer other", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Validate(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAuth_Middleware(t *testing.T) {
	_, api := humatest.New(t)
	a := New([]string{hash(t, "field-token")}, slog.Default())

	huma.Register(api, huma.Operation{
		OperationID: "secret",
		Method:      http.MethodGet,
		Path:        "/secret",
		Middlewares: huma.Middlewares{a.Middleware(api)},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		return nil, nil
	})

	assert.Equal(t, http.StatusUnauthorized, api.Get("/secret").Code)
	assert.Equal(t, http.StatusUnauthorized, api.Get("/secret", "Authorization: Bearer nope").Code)
	assert.Equal(t, http.StatusNoContent, api.Get("/secret", "Authorization: Bearer field-token").Code)
}

func TestAuth_DisabledWithoutHashes(t *testing.T) {
	a := New(nil, slog.Default())
	assert.False(t, a.Enabled())

	h, err := HashToken("x")
	require.NoError(t, err)
	assert.True(t, New([]string{h}, slog.Default()).Enabled())
}
