package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/auth"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/identity"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/sessions"
)

// SessionHandlers handles login and session lifecycle requests
type SessionHandlers struct {
	users    identity.Service
	sessions sessions.Service
	tokens   *auth.TokenService
	logger   *observability.Logger
}

// NewSessionHandlers creates a new SessionHandlers
func NewSessionHandlers(users identity.Service, sessionSvc sessions.Service, tokens *auth.TokenService, logger *observability.Logger) *SessionHandlers {
	return &SessionHandlers{
		users:    users,
		sessions: sessionSvc,
		tokens:   tokens,
		logger:   logger,
	}
}

// RegisterRoutes registers the protected session routes. Login is
// public and registered separately by the server.
func (h *SessionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sessions/me", h.Me).Methods("GET")
	router.HandleFunc("/sessions/me", h.Renew).Methods("POST")
	router.HandleFunc("/sessions", h.Logout).Methods("DELETE")
	router.HandleFunc("/sessions/password", h.ChangePassword).Methods("POST")
}

// LoginRequest carries login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the signed token plus the sanitized user with
// its roles and account memberships
type LoginResponse struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

// Login verifies credentials, creates a session and issues a token
func (h *SessionHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") || !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	// Unknown email and wrong password are indistinguishable here
	user, err := h.users.VerifyCredentials(req.Email, req.Password)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to verify credentials: %w", err))
		return
	}
	if user == nil {
		httputil.WriteAPIError(w, h.logger, httputil.NewError(httputil.Unauthorized, "Invalid credentials"))
		return
	}

	session, err := h.sessions.Create(user.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create session: %w", err))
		return
	}

	token, err := h.tokens.Issue(session.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to issue token: %w", err))
		return
	}

	httputil.WriteSuccess(w, LoginResponse{Token: token, User: user})
}

// Me returns the authenticated caller's user record
func (h *SessionHandlers) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, caller.User)
}

// Renew pushes the caller's session expiry forward
func (h *SessionHandlers) Renew(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Renew(caller.Session.ID); err != nil {
		writeServiceError(w, h.logger, err, "session")
		return
	}
	httputil.WriteNoContent(w)
}

// Logout revokes the caller's session. Idempotent.
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Revoke(caller.Session.ID); err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to revoke session: %w", err))
		return
	}
	httputil.WriteNoContent(w)
}

// ChangePasswordRequest carries a password change
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword verifies the old password before rehashing the new one
func (h *SessionHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.VerifyCredentials(caller.User.Email, req.OldPassword)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to verify credentials: %w", err))
		return
	}
	if user == nil {
		httputil.WriteAPIError(w, h.logger, httputil.NewError(httputil.Unauthorized, "Invalid credentials"))
		return
	}

	if !auth.ValidPassword(req.NewPassword) {
		httputil.WriteBadRequest(w, "Password too weak")
		return
	}

	if err := h.users.ChangePassword(caller.User.ID, req.NewPassword); err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	httputil.WriteNoContent(w)
}
