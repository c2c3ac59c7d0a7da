package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/middleware"
	"cropconnect/models"
	"cropconnect/rdx"
)

func newRouter() *httprouter.Router {
	rev := rdx.NewMemory()
	tokens := middleware.NewAuth("secret", time.Hour, rev)
	h := NewHandler(NewMemoryStore(), tokens, rev)

	r := httprouter.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", tokens.Authenticate(h.Logout))
	r.GET("/api/auth/me", tokens.Authenticate(h.Me))
	r.PUT("/api/auth/profile", tokens.Authenticate(h.UpdateProfile))
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, r http.Handler, email string, role models.Role) models.AuthResponse {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ravi", "email": email, "password": "secret1", "role": role,
		"address": map[string]string{"village": "Kharar", "state": "Punjab"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterLoginMe(t *testing.T) {
	r := newRouter()
	reg := register(t, r, "Ravi@Example.com", models.RoleFarmer)
	assert.True(t, reg.Success)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, models.RoleFarmer, reg.User.Role)
	assert.Equal(t, "ravi@example.com", reg.User.Email)

	rec := do(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ravi@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var login models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = do(t, r, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), reg.User.UserID)
}

func TestRegisterRejectsDuplicateAndBadInput(t *testing.T) {
	r := newRouter()
	register(t, r, "asha@example.com", models.RoleBuyer)

	rec := do(t, r, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Asha", "email": "asha@example.com", "password": "secret1", "role": "buyer",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Asha", "email": "new@example.com", "password": "secret1", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "role")
}

func TestLoginWrongPassword(t *testing.T) {
	r := newRouter()
	register(t, r, "asha@example.com", models.RoleBuyer)
	rec := do(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "asha@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid email or password"}`, rec.Body.String())
}

func TestProfileRoleIsImmutable(t *testing.T) {
	r := newRouter()
	reg := register(t, r, "w@example.com", models.RoleWorker)

	rec := do(t, r, http.MethodPut, "/api/auth/profile", reg.Token, map[string]any{"role": "farmer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/auth/profile", reg.Token, map[string]any{"name": "Worker Ram", "role": "worker"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Worker Ram")
	assert.Contains(t, rec.Body.String(), `"role":"worker"`)
}

func TestLogoutRevokesToken(t *testing.T) {
	r := newRouter()
	reg := register(t, r, "b@example.com", models.RoleBuyer)

	rec := do(t, r, http.MethodPost, "/api/auth/logout", reg.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/auth/me", reg.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
