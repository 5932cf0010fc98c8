package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected() (http.Handler, *string) {
	var seen string
	h := JWTMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestJWTMiddleware(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		h, seen := protected()
		token, err := IssueToken(testSecret, "u1", time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", *seen)
	})

	expired, err := IssueToken(testSecret, "u1", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other"), "u1", time.Minute)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic dTE6cHc="},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong secret", header: "Bearer " + foreign},
		{name: "no user claim", header: "Bearer " + noUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, seen := protected()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.Empty(t, *seen)
		})
	}
}

func TestIssueToken(t *testing.T) {
	t.Run("round trips the user id", func(t *testing.T) {
		raw, err := IssueToken(testSecret, "u42", time.Hour)
		require.NoError(t, err)

		claims := &TokenClaims{}
		_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return testSecret, nil })
		require.NoError(t, err)
		assert.Equal(t, "u42", claims.UserID)
		assert.Equal(t, "u42", claims.Subject)
	})

	t.Run("rejects empty inputs", func(t *testing.T) {
		_, err := IssueToken(nil, "u1", time.Hour)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)

		_, err = IssueToken(testSecret, "", time.Hour)
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})
}
