package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

var secret = []byte("test-jwt-secret")

func run(t *testing.T, h echo.MiddlewareFunc, setup func(r *http.Request)) (*tokens.Credential, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	setup(req)
	c := e.NewContext(req, httptest.NewRecorder())

	var got *tokens.Credential
	err := h(func(c echo.Context) error {
		got = Credential(c)
		return nil
	})(c)
	return got, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	return he.Code
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	m := NewAuthMiddleware(secret)
	userID := uuid.New()
	tok, err := tokens.NewAccessToken(userID, "user", time.Minute, secret)
	require.NoError(t, err)

	cred, err := run(t, m.RequireAuth, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	})
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, userID, cred.UserID)
}

func TestRequireAuth_Cookie(t *testing.T) {
	m := NewAuthMiddleware(secret)
	tok, err := tokens.NewAccessToken(uuid.New(), "user", time.Minute, secret)
	require.NoError(t, err)

	cred, err := run(t, m.RequireAuth, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "accessToken", Value: tok})
	})
	require.NoError(t, err)
	assert.NotNil(t, cred)
}

func TestRequireAuth_Missing(t *testing.T) {
	m := NewAuthMiddleware(secret)
	_, err := run(t, m.RequireAuth, func(*http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestRequireAuth_Invalid(t *testing.T) {
	m := NewAuthMiddleware(secret)
	_, err := run(t, m.RequireAuth, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(secret)

	userTok, err := tokens.NewAccessToken(uuid.New(), "user", time.Minute, secret)
	require.NoError(t, err)
	_, err = run(t, m.RequireAdmin, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+userTok)
	})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	adminTok, err := tokens.NewAccessToken(uuid.New(), tokens.RoleAdmin, time.Minute, secret)
	require.NoError(t, err)
	cred, err := run(t, m.RequireAdmin, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+adminTok)
	})
	require.NoError(t, err)
	assert.True(t, cred.IsAdmin())
}
