package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ebookviewer/internal/middleware"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := setupService(t)

	h := NewHandler(env.svc, zap.NewNop())
	r := gin.New()
	h.RegisterPublicRoutes(r)
	protected := r.Group("/")
	protected.Use(middleware.JWTAuth(env.tokens, env.users, zap.NewNop()))
	h.RegisterProtectedRoutes(protected)
	return r, env
}

func doJSONRequest(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSignupHandler(t *testing.T) {
	r, _ := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/signup", map[string]string{
		"username": "reader", "password": "pw", "email": "reader@example.com",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")

	var body struct {
		Message string         `json:"message"`
		User    map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "reader", body.User["username"])
	assert.Equal(t, false, body.User["isPremium"])

	rr = doJSONRequest(r, http.MethodPost, "/signup", map[string]string{"username": "reader", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, "/signup", map[string]string{"password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestSignupHandler_MultibytePasswordOverBcryptLimit(t *testing.T) {
	r, env := setupTestRouter(t)

	// 60 runes pass the binding rule but are 120 bytes
	rr := doJSONRequest(r, http.MethodPost, "/signup", map[string]string{
		"username": "u1", "password": strings.Repeat("é", 60),
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "VALIDATION_ERROR")

	exists, err := env.users.ExistsByUsername(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoginRefreshAndMe(t *testing.T) {
	r, _ := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/login", map[string]string{"username": "admin", "password": "admin"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	require.NotEmpty(t, login.RefreshToken)
	assert.True(t, login.User.IsAdmin)

	rr = doJSONRequest(r, http.MethodGet, "/user", nil, login.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"username":"admin"`)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = doJSONRequest(r, http.MethodPost, "/refresh-token", map[string]string{"refreshToken": login.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var refreshed RefreshResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.Token)

	rr = doJSONRequest(r, http.MethodPost, "/refresh-token", map[string]string{"refreshToken": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, "/logout", map[string]string{"refreshToken": login.RefreshToken}, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	r, _ := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/login", map[string]string{"username": "ghost", "password": "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "INVALID_CREDENTIALS")
}
