package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/restaurant_ordering/pkg/authclient"
	"github.com/Skotchmaster/restaurant_ordering/pkg/tokens"
)

var secret = []byte("test-jwt-secret")

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, c.Get(ContextUserID).(string)+"|"+c.Get(ContextRole).(string))
}

func serve(t *testing.T, h echo.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func httpCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestRequireAuth_BearerToken(t *testing.T) {
	userID := uuid.NewString()
	tok, err := tokens.SignAccessToken(userID, "user", time.Now().Add(time.Minute), secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)

	m := NewAutoRefreshMiddleware(secret, nil)
	rec, err := serve(t, m.RequireAuth(okHandler), req)
	require.NoError(t, err)
	assert.Equal(t, userID+"|user", rec.Body.String())
}

func TestRequireAuth_MissingToken(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	_, err := serve(t, m.RequireAuth(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, httpCode(err))
}

func TestRequireRole_RejectsCustomer(t *testing.T) {
	tok, err := tokens.SignAccessToken(uuid.NewString(), "user", time.Now().Add(time.Minute), secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: tok})

	m := NewAutoRefreshMiddleware(secret, nil)
	_, err = serve(t, m.RequireRole("admin", "staff")(okHandler), req)
	assert.Equal(t, http.StatusForbidden, httpCode(err))
}

func TestRequireAuth_ExpiredCookieIsRefreshed(t *testing.T) {
	userID := uuid.NewString()
	fresh, err := tokens.SignAccessToken(userID, "staff", time.Now().Add(time.Minute), secret)
	require.NoError(t, err)

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authclient.RefreshResponse{
			AccessToken:  fresh,
			RefreshToken: "next-refresh",
			AccessExp:    time.Now().Add(time.Minute).Unix(),
			RefreshExp:   time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer authSrv.Close()

	expired, err := tokens.SignAccessToken(userID, "staff", time.Now().Add(-time.Minute), secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: expired})
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "old-refresh"})

	m := NewAutoRefreshMiddleware(secret, authclient.NewClient(authSrv.URL))
	rec, err := serve(t, m.RequireRole("staff")(okHandler), req)
	require.NoError(t, err)
	assert.Equal(t, userID+"|staff", rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, fresh, cookies[0].Value)
}

func TestRequireAuth_ExpiredBearerIsRejected(t *testing.T) {
	expired, err := tokens.SignAccessToken(uuid.NewString(), "user", time.Now().Add(-time.Minute), secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+expired)

	m := NewAutoRefreshMiddleware(secret, authclient.NewClient("http://unused"))
	_, err = serve(t, m.RequireAuth(okHandler), req)
	assert.Equal(t, http.StatusUnauthorized, httpCode(err))
}
