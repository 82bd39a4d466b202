package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/projects"
	"github.com/testboss/testboss/pkg/testlists"
	"github.com/testboss/testboss/pkg/testreports"
)

// ProjectHandlers handles project-related HTTP requests
type ProjectHandlers struct {
	projects    projects.Service
	testlists   testlists.Service
	testreports testreports.Service
	logger      *observability.Logger
}

// NewProjectHandlers creates a new ProjectHandlers
func NewProjectHandlers(projectSvc projects.Service, testlistSvc testlists.Service, reportSvc testreports.Service, logger *observability.Logger) *ProjectHandlers {
	return &ProjectHandlers{
		projects:    projectSvc,
		testlists:   testlistSvc,
		testreports: reportSvc,
		logger:      logger,
	}
}

// RegisterRoutes registers project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")
	router.HandleFunc("/projects/{id}", h.UpdateProject).Methods("PUT")
	router.HandleFunc("/projects/{id}", h.DeleteProject).Methods("DELETE")

	router.HandleFunc("/projects/{id}/testlists", h.ListTestlists).Methods("GET")
	router.HandleFunc("/projects/{id}/testlists", h.CreateTestlist).Methods("POST")
	router.HandleFunc("/projects/{id}/testreports", h.ListTestreports).Methods("GET")
}

// GetProject retrieves a project. Allowed to members of its account.
func (h *ProjectHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	project, err := authz.Authorize(middleware.GetCaller(r), "retrieve", "project", func() (*projects.Project, error) {
		return h.projects.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// UpdateProject updates a project. Allowed to members of its account.
func (h *ProjectHandlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req projects.UpdateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "update", "project", func() (*projects.Project, error) {
		return h.projects.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.projects.Update(id, &req); err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}

	project, err := h.projects.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}
	httputil.WriteSuccess(w, project)
}

// DeleteProject removes a project. Allowed to members of its account.
func (h *ProjectHandlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "delete", "project", func() (*projects.Project, error) {
		return h.projects.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.projects.Delete(id); err != nil {
		writeServiceError(w, h.logger, err, "project")
		return
	}
	httputil.WriteNoContent(w)
}

// ListTestlists returns a project's testlists
func (h *ProjectHandlers) ListTestlists(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	project, err := authz.Authorize(middleware.GetCaller(r), "retrieve testlists of", "project", func() (*projects.Project, error) {
		return h.projects.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	list, err := h.testlists.ListByProject(project.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list testlists: %w", err))
		return
	}
	httputil.WriteSuccess(w, emptyList(list))
}

// CreateTestlistRequest carries a new testlist; the parent ids come
// from the verified project, never from the body
type CreateTestlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateTestlist creates a testlist under a project
func (h *ProjectHandlers) CreateTestlist(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req CreateTestlistRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	project, err := authz.Authorize(middleware.GetCaller(r), "create testlists in", "project", func() (*projects.Project, error) {
		return h.projects.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	testlist := &testlists.Testlist{
		AccountID:   project.AccountID,
		ProjectID:   project.ID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.testlists.Create(testlist); err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create testlist: %w", err))
		return
	}
	httputil.WriteCreated(w, testlist)
}

// ListTestreports returns a project's testreports
func (h *ProjectHandlers) ListTestreports(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	project, err := authz.Authorize(middleware.GetCaller(r), "retrieve testreports of", "project", func() (*projects.Project, error) {
		return h.projects.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	list, err := h.testreports.ListByProject(project.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list testreports: %w", err))
		return
	}
	httputil.WriteSuccess(w, emptyList(list))
}
