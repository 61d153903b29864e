package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/internal/stores"
	"github.com/MrEthical07/donorhub/password"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestEngine(t *testing.T) *donorhub.Engine {
	t.Helper()

	store := stores.NewMemoryAccounts()
	hasher, err := password.NewBcrypt(password.Config{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	hash, err := hasher.Hash("correct-password-123")
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &account.Account{
		Email:          "alice@example.org",
		Name:           "Alice",
		HashedPassword: hash,
	}))

	cfg := donorhub.DefaultConfig()
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Cost = bcrypt.MinCost
	cfg.Audit.Enabled = false

	engine, err := donorhub.New().WithConfig(cfg).WithAccountStore(store).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"valid":        {"Bearer abc", "abc", true},
		"lowercase":    {"bearer abc", "abc", true},
		"empty":        {"", "", false},
		"no token":     {"Bearer ", "", false},
		"basic scheme": {"Basic abc", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := BearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	engine := newTestEngine(t)
	login, err := engine.Login(context.Background(), "alice@example.org", "correct-password-123")
	require.NoError(t, err)

	e := echo.New()
	handler := RequireAuth(engine)(func(c echo.Context) error {
		id, ok := IdentityFromContext(c.Request().Context())
		require.True(t, ok)
		return c.String(http.StatusOK, id.Email)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		err := handler(e.NewContext(req, httptest.NewRecorder()))
		var he *echo.HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, http.StatusUnauthorized, he.Code)
		assert.Equal(t, MessageNoToken, he.Message)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
		err := handler(e.NewContext(req, httptest.NewRecorder()))
		var he *echo.HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, MessageInvalidToken, he.Message)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+login.Token)
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		assert.Equal(t, "alice@example.org", rec.Body.String())
	})
}
