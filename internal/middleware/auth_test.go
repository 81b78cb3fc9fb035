package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peerpay/backend/internal/services"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return f.revoked[token], f.err
}

func protectedHandler(t *testing.T, revocations TokenRevocations) http.Handler {
	return InitAuthMiddleware(revocations)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(session.Token))
	}))
}

func TestExtractToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractToken("bearer  abc "))
	assert.Equal(t, "abc", ExtractToken("abc"))
	assert.Equal(t, "", ExtractToken("Basic abc"))
	assert.Equal(t, "", ExtractToken("   "))
}

func TestInitAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "middleware-secret")
	viper.Set("jwt.expiry_hours", 1)

	token, _, err := services.GenerateToken(7)
	require.NoError(t, err)

	cases := []struct {
		name        string
		header      string
		revocations TokenRevocations
		wantStatus  int
	}{
		{"bearer token", "Bearer " + token, nil, http.StatusOK},
		{"bare token", token, &fakeRevocations{}, http.StatusOK},
		{"missing header", "", nil, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", nil, http.StatusUnauthorized},
		{"revoked token", "Bearer " + token, &fakeRevocations{revoked: map[string]bool{token: true}}, http.StatusUnauthorized},
		{"blacklist unavailable", "Bearer " + token, &fakeRevocations{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			protectedHandler(t, tc.revocations).ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, token, w.Body.String())
			}
		})
	}
}

func TestSessionFromContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSession(context.Background(), &Session{UserID: 3, Token: "t"})
	session, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), session.UserID)
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
