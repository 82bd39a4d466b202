// Package middleware provides request authentication and login rate
// limiting.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/testboss/testboss/pkg/auth"
	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/contextkeys"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/identity"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/sessions"
	"github.com/testboss/testboss/pkg/storage"
)

// AuthMiddleware resolves the bearer token to a caller:
// token -> session -> user. An expired session is treated the same as
// an absent one.
type AuthMiddleware struct {
	tokens   *auth.TokenService
	sessions sessions.Service
	users    identity.Service
	logger   *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *auth.TokenService, sessionSvc sessions.Service, users identity.Service, logger *observability.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		sessions: sessionSvc,
		users:    users,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := m.Resolve(r)
		if err != nil {
			httputil.WriteAPIError(w, m.logger, err)
			return
		}

		ctx := contextkeys.WithCaller(r.Context(), caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve authenticates the request and returns the caller
func (m *AuthMiddleware) Resolve(r *http.Request) (*authz.Caller, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, httputil.NewError(httputil.Unauthorized, "Missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, httputil.NewError(httputil.Unauthorized, "Invalid authorization header")
	}

	sessionID, err := m.tokens.Validate(parts[1])
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, httputil.NewError(httputil.Unauthorized, "Token expired")
		}
		return nil, httputil.NewError(httputil.Unauthorized, "Invalid token")
	}

	session, err := m.sessions.GetByID(sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, httputil.NewError(httputil.Unauthorized, "Session not found")
		}
		return nil, httputil.Internalf("failed to resolve session: %w", err)
	}
	if session.Expired() {
		return nil, httputil.NewError(httputil.Unauthorized, "Session not found")
	}

	user, err := m.users.GetByID(session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, httputil.NewError(httputil.Unauthorized, "Session not found")
		}
		return nil, httputil.Internalf("failed to resolve user: %w", err)
	}

	return &authz.Caller{User: user, Session: session}, nil
}

// GetCaller extracts the authenticated caller from the request, or nil
func GetCaller(r *http.Request) *authz.Caller {
	value := r.Context().Value(contextkeys.CallerKey)
	if value == nil {
		return nil
	}
	caller, ok := value.(*authz.Caller)
	if !ok {
		return nil
	}
	return caller
}
