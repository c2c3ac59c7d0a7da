package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"cropconnect/globals"
	"cropconnect/models"
	"cropconnect/utils"
)

// JWT claims
type Claims struct {
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Revoker reports logged-out token ids.
type Revoker interface {
	IsRevoked(ctx context.Context, jti string) bool
}

type Auth struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
}

func NewAuth(secret string, ttl time.Duration, revoker Revoker) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl, revoker: revoker}
}

// IssueToken signs a token for the user and returns it with its claims.
func (a *Auth) IssueToken(user models.User) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.UserID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.GetUUID(),
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateJWT parses a raw token (no "Bearer " prefix).
func (a *Auth) ValidateJWT(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("invalid token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if a.revoker != nil && a.revoker.IsRevoked(ctx, claims.ID) {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 8 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	return h[7:], true
}

func withClaims(r *http.Request, c *Claims) *http.Request {
	ctx := context.WithValue(r.Context(), globals.UserIDKey, c.UserID)
	ctx = context.WithValue(ctx, globals.RoleKey, string(c.Role))
	ctx = context.WithValue(ctx, globals.TokenIDKey, c.ID)
	return r.WithContext(ctx)
}

// ClaimsFromRequest returns the token id and expiry of the current request.
func ClaimsFromRequest(r *http.Request) (string, time.Time) {
	jti, _ := r.Context().Value(globals.TokenIDKey).(string)
	exp, _ := r.Context().Value(expiryKey).(time.Time)
	return jti, exp
}

const expiryKey globals.ContextKey = "exp"

func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString, ok := bearer(r)
		if !ok && websocket.IsWebSocketUpgrade(r) {
			// browsers cannot set headers on the upgrade request
			tokenString, ok = r.URL.Query().Get("token"), true
		}
		if !ok || tokenString == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing token")
			return
		}

		claims, err := a.ValidateJWT(r.Context(), tokenString)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		r = withClaims(r, claims)
		if claims.ExpiresAt != nil {
			r = r.WithContext(context.WithValue(r.Context(), expiryKey, claims.ExpiresAt.Time))
		}
		next(w, r, ps)
	}
}

func (a *Auth) OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if tokenString, ok := bearer(r); ok {
			if claims, err := a.ValidateJWT(r.Context(), tokenString); err == nil {
				r = withClaims(r, claims)
			}
		}
		// Proceed regardless of token state
		next(w, r, ps)
	}
}

// RequireRoles must run after Authenticate.
func RequireRoles(roles ...models.Role) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			role := models.Role(utils.GetRoleFromRequest(r))
			for _, allowed := range roles {
				if role == allowed {
					next(w, r, ps)
					return
				}
			}
			utils.RespondWithError(w, http.StatusForbidden, "Forbidden")
		}
	}
}

// Chain applies middlewares so the first one listed runs first.
func Chain(h httprouter.Handle, mws ...func(httprouter.Handle) httprouter.Handle) httprouter.Handle {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
