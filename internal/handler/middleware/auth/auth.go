package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

var (
	ErrNoToken      = errors.New("bearer token is missing")
	ErrInvalidToken = errors.New("bearer token is invalid")
)

// Auth проверяет Bearer-токен по списку bcrypt-хешей
type Auth struct {
	hashes [][]byte
	log    *slog.Logger

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

func New(hashes []string, log *slog.Logger) *Auth {
	a := &Auth{
		log:      log.With(slog.String("component", "auth_middleware")),
		verified: make(map[[sha256.Size]byte]struct{}),
	}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a
}

// Enabled сообщает, настроены ли токены. Без токенов проверка отключена.
func (a *Auth) Enabled() bool {
	return len(a.hashes) > 0
}

// Validate проверяет значение заголовка Authorization
func (a *Auth) Validate(header string) error {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return ErrNoToken
	}

	key := sha256.Sum256([]byte(token))
	a.mu.RLock()
	_, known := a.verified[key]
	a.mu.RUnlock()
	if known {
		return nil
	}

	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			a.mu.Lock()
			a.verified[key] = struct{}{}
			a.mu.Unlock()
			return nil
		}
	}

	return ErrInvalidToken
}

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !a.Enabled() {
			next(ctx)
			return
		}

		if err := a.Validate(ctx.Header("Authorization")); err != nil {
			a.log.Warn("unauthorized request", "path", ctx.URL().Path, "error", err)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized", err)
			return
		}

		next(ctx)
	}
}

// HashToken возвращает bcrypt-хеш токена для AUTH_TOKEN_HASHES
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
