package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/models"
	"cropconnect/utils"
)

type revokedSet map[string]bool

func (s revokedSet) IsRevoked(_ context.Context, jti string) bool { return s[jti] }

func echoUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"userId": utils.GetUserIDFromRequest(r),
		"role":   utils.GetRoleFromRequest(r),
	})
}

func TestAuthenticateAcceptsIssuedToken(t *testing.T) {
	a := NewAuth("test-secret", time.Hour, nil)
	token, claims, err := a.IssueToken(models.User{UserID: "u1", Role: models.RoleFarmer})
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.Authenticate(echoUser)(rec, req, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u1","role":"farmer"}`, rec.Body.String())
}

func TestAuthenticateRejects(t *testing.T) {
	a := NewAuth("test-secret", time.Hour, nil)
	other := NewAuth("other-secret", time.Hour, nil)
	foreign, _, err := other.IssueToken(models.User{UserID: "u1", Role: models.RoleBuyer})
	require.NoError(t, err)

	cases := map[string]string{
		"missing":      "",
		"no scheme":    foreign,
		"wrong secret": "Bearer " + foreign,
		"garbage":      "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			a.Authenticate(echoUser)(rec, req, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"message"`)
		})
	}
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	revoked := revokedSet{}
	a := NewAuth("test-secret", time.Hour, revoked)
	token, claims, err := a.IssueToken(models.User{UserID: "u1", Role: models.RoleBuyer})
	require.NoError(t, err)
	revoked[claims.ID] = true

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.Authenticate(echoUser)(rec, req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuthPassesAnonymous(t *testing.T) {
	a := NewAuth("test-secret", time.Hour, nil)
	rec := httptest.NewRecorder()
	a.OptionalAuth(echoUser)(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"","role":""}`, rec.Body.String())
}

func TestRequireRoles(t *testing.T) {
	a := NewAuth("test-secret", time.Hour, nil)
	h := Chain(echoUser, a.Authenticate, RequireRoles(models.RoleFarmer))

	for role, want := range map[models.Role]int{
		models.RoleFarmer: http.StatusOK,
		models.RoleBuyer:  http.StatusForbidden,
	} {
		token, _, err := a.IssueToken(models.User{UserID: "u1", Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		assert.Equal(t, want, rec.Code, role)
	}
}
