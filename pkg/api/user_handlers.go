package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/auth"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/identity"
	"github.com/testboss/testboss/pkg/observability"
)

// UserHandlers handles user-related HTTP requests
type UserHandlers struct {
	users  identity.Service
	logger *observability.Logger
}

// NewUserHandlers creates a new UserHandlers
func NewUserHandlers(users identity.Service, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{users: users, logger: logger}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.ListUsers).Methods("GET")
	router.HandleFunc("/users", h.CreateUser).Methods("POST")
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.UpdateUser).Methods("PUT")
	router.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")
}

// ListUsers returns a paginated user list. Admin only.
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok || !requireAdmin(w, caller, h.logger) {
		return
	}

	skip, limit, sortBy, sortDir, ok := parsePageParams(w, r)
	if !ok {
		return
	}

	list, total, err := h.users.List(skip, limit, sortBy, sortDir)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list users: %w", err))
		return
	}
	httputil.WritePage(w, emptyList(list), total)
}

// CreateUserRequest carries a new user
type CreateUserRequest struct {
	Email     string                `json:"email"`
	Password  string                `json:"password"`
	Firstname string                `json:"firstname"`
	Lastname  string                `json:"lastname"`
	Roles     []string              `json:"roles"`
	Accounts  []identity.Membership `json:"accounts"`
}

// CreateUser creates a new user. Admin only.
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok || !requireAdmin(w, caller, h.logger) {
		return
	}

	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !auth.ValidEmail(req.Email) {
		httputil.WriteBadRequest(w, "Invalid email")
		return
	}
	if !auth.ValidPassword(req.Password) {
		httputil.WriteBadRequest(w, "Password too weak")
		return
	}

	user := &identity.User{
		Email:     req.Email,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Roles:     req.Roles,
		Accounts:  req.Accounts,
	}
	if err := h.users.Create(user, req.Password); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			httputil.WriteBadRequest(w, "Email already in use")
			return
		}
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create user: %w", err))
		return
	}
	httputil.WriteCreated(w, user)
}

// GetUser retrieves a user. Allowed to the user themselves or an admin.
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if id != caller.User.ID && !caller.User.IsAdmin() {
		httputil.WriteAPIError(w, h.logger,
			httputil.NewError(httputil.Forbidden, "You are not allowed to retrieve this user"))
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	httputil.WriteSuccess(w, user)
}

// UpdateUser updates a user. Allowed to the user themselves or an
// admin; only admins may change roles or memberships.
func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if id != caller.User.ID && !caller.User.IsAdmin() {
		httputil.WriteAPIError(w, h.logger,
			httputil.NewError(httputil.Forbidden, "You are not allowed to update this user"))
		return
	}

	var req identity.UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !caller.User.IsAdmin() && (req.Roles != nil || req.Accounts != nil) {
		httputil.WriteAPIError(w, h.logger,
			httputil.NewError(httputil.Forbidden, "You are not allowed to update this user"))
		return
	}

	if req.Email != nil && !auth.ValidEmail(*req.Email) {
		httputil.WriteBadRequest(w, "Invalid email")
		return
	}

	if err := h.users.Update(id, &req); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			httputil.WriteBadRequest(w, "Email already in use")
			return
		}
		writeServiceError(w, h.logger, err, "user")
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	httputil.WriteSuccess(w, user)
}

// DeleteUser removes a user. Admin only.
func (h *UserHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok || !requireAdmin(w, caller, h.logger) {
		return
	}

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.users.Delete(id); err != nil {
		writeServiceError(w, h.logger, err, "user")
		return
	}
	httputil.WriteNoContent(w)
}
