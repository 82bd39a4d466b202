package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/accounts"
	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/projects"
)

// AccountHandlers handles account-related HTTP requests
type AccountHandlers struct {
	accounts accounts.Service
	projects projects.Service
	logger   *observability.Logger
}

// NewAccountHandlers creates a new AccountHandlers
func NewAccountHandlers(accountSvc accounts.Service, projectSvc projects.Service, logger *observability.Logger) *AccountHandlers {
	return &AccountHandlers{
		accounts: accountSvc,
		projects: projectSvc,
		logger:   logger,
	}
}

// RegisterRoutes registers account routes
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	router.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	router.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	router.HandleFunc("/accounts/{id}", h.UpdateAccount).Methods("PUT")
	router.HandleFunc("/accounts/{id}", h.DeleteAccount).Methods("DELETE")

	router.HandleFunc("/accounts/{id}/projects", h.ListProjects).Methods("GET")
	router.HandleFunc("/accounts/{id}/projects", h.CreateProject).Methods("POST")
}

// ListAccounts returns a paginated account list. Admin only.
func (h *AccountHandlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok || !requireAdmin(w, caller, h.logger) {
		return
	}

	skip, limit, sortBy, sortDir, ok := parsePageParams(w, r)
	if !ok {
		return
	}

	list, total, err := h.accounts.List(skip, limit, sortBy, sortDir)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list accounts: %w", err))
		return
	}
	httputil.WritePage(w, emptyList(list), total)
}

// CreateAccountRequest carries a new account
type CreateAccountRequest struct {
	Name string `json:"name"`
}

// CreateAccount creates a new account. Admin only.
func (h *AccountHandlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok || !requireAdmin(w, caller, h.logger) {
		return
	}

	var req CreateAccountRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	account := &accounts.Account{Name: req.Name}
	if err := h.accounts.Create(account); err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create account: %w", err))
		return
	}
	httputil.WriteCreated(w, account)
}

// GetAccount retrieves an account. Allowed to its members.
func (h *AccountHandlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	account, err := authz.Authorize(middleware.GetCaller(r), "retrieve", "account", func() (*accounts.Account, error) {
		return h.accounts.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// UpdateAccount updates an account. Allowed to its members.
func (h *AccountHandlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req accounts.UpdateAccountRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "update", "account", func() (*accounts.Account, error) {
		return h.accounts.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.accounts.Update(id, &req); err != nil {
		writeServiceError(w, h.logger, err, "account")
		return
	}

	account, err := h.accounts.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "account")
		return
	}
	httputil.WriteSuccess(w, account)
}

// DeleteAccount removes an account. Admin only.
func (h *AccountHandlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r, h.logger)
	if !ok || !requireAdmin(w, caller, h.logger) {
		return
	}

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.accounts.Delete(id); err != nil {
		writeServiceError(w, h.logger, err, "account")
		return
	}
	httputil.WriteNoContent(w)
}

// ListProjects returns an account's projects
func (h *AccountHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	account, err := authz.Authorize(middleware.GetCaller(r), "retrieve projects of", "account", func() (*accounts.Account, error) {
		return h.accounts.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	list, err := h.projects.ListByAccount(account.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list projects: %w", err))
		return
	}
	httputil.WriteSuccess(w, emptyList(list))
}

// CreateProjectRequest carries a new project; the owning account comes
// from the verified parent, never from the body
type CreateProjectRequest struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Description   string `json:"description"`
	RepositoryURL string `json:"repository_url"`
}

// CreateProject creates a project under an account
func (h *AccountHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req CreateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	account, err := authz.Authorize(middleware.GetCaller(r), "create projects in", "account", func() (*accounts.Account, error) {
		return h.accounts.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	project := &projects.Project{
		AccountID:     account.ID,
		Name:          req.Name,
		Version:       req.Version,
		Description:   req.Description,
		RepositoryURL: req.RepositoryURL,
	}
	if err := h.projects.Create(project); err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create project: %w", err))
		return
	}
	httputil.WriteCreated(w, project)
}
