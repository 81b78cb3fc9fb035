package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/peerpay/backend/internal/services"
)

type contextKey struct{ name string }

var sessionKey = &contextKey{"session"}

// Session is the verified identity of the caller for one request.
type Session struct {
	UserID int64
	Token  string
}

// TokenRevocations reports whether a token was logged out.
type TokenRevocations interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// InitAuthMiddleware returns the middleware guarding authenticated routes.
// revocations may be nil when Redis is not configured.
func InitAuthMiddleware(revocations TokenRevocations) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r.Header.Get("Authorization"))
			if token == "" {
				services.SendAppError(w, services.ErrUnauthorized.WithMessage("Authorization header required"))
				return
			}

			claims, err := services.ParseToken(token)
			if err != nil {
				log.Printf("[AUTH] Invalid token from %s: %v", r.RemoteAddr, err)
				services.SendAppError(w, services.ErrUnauthorized.WithMessage("Invalid token"))
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsBlacklisted(r.Context(), token)
				if err != nil {
					log.Printf("[AUTH] Blacklist lookup failed: %v", err)
					services.SendAppError(w, services.ErrUnavailable.Wrap(err))
					return
				}
				if revoked {
					services.SendAppError(w, services.ErrUnauthorized.WithMessage("Token has been revoked"))
					return
				}
			}

			ctx := WithSession(r.Context(), &Session{UserID: claims.UserID, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractToken accepts "Bearer <token>" and a bare token, which is what the
// browser client sends.
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if scheme, rest, ok := strings.Cut(header, " "); ok {
		if !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return header
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session set by the auth middleware.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}
