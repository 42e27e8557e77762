package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken("user-1", RoleStudent, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, RoleStudent, claims.Role)

	_, err = ValidateToken(tok, "other-secret")
	assert.Error(t, err)
}

func TestToken_Expired(t *testing.T) {
	claims := &Claims{
		UserID: "user-1",
		Role:   RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = ValidateToken(tok, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestToken_RequiresUserID(t *testing.T) {
	tok, err := GenerateToken("", RoleStudent, secret, time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(tok, secret)
	assert.Error(t, err)
}

func echoClaims() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := FromContext(r.Context()); ok {
			_, _ = w.Write([]byte(c.UserID + ":" + c.Role))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
}

func serve(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	m := NewMiddleware(secret)
	student, err := GenerateToken("s-1", RoleStudent, secret, time.Hour)
	require.NoError(t, err)
	admin, err := GenerateToken("a-1", RoleAdmin, secret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		status  int
		body    string
	}{
		{"authenticate ok", m.Authenticate(echoClaims()), "Bearer " + student, http.StatusOK, "s-1:student"},
		{"authenticate missing", m.Authenticate(echoClaims()), "", http.StatusUnauthorized, ""},
		{"authenticate bad scheme", m.Authenticate(echoClaims()), "Basic abc", http.StatusUnauthorized, ""},
		{"optional anonymous", m.Optional(echoClaims()), "", http.StatusOK, "anonymous"},
		{"optional with token", m.Optional(echoClaims()), "Bearer " + student, http.StatusOK, "s-1:student"},
		{"optional bad token", m.Optional(echoClaims()), "Bearer nope", http.StatusUnauthorized, ""},
		{"admin allowed", m.Authenticate(RequireRole(RoleAdmin)(echoClaims())), "Bearer " + admin, http.StatusOK, "a-1:admin"},
		{"student denied admin", m.Authenticate(RequireRole(RoleAdmin)(echoClaims())), "Bearer " + student, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.handler, tt.header)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"message"`)
			}
		})
	}
}
