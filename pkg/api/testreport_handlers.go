package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/testreports"
	"github.com/testboss/testboss/pkg/testresults"
)

// TestreportHandlers handles testreport-related HTTP requests
type TestreportHandlers struct {
	testreports testreports.Service
	testresults testresults.Service
	logger      *observability.Logger
}

// NewTestreportHandlers creates a new TestreportHandlers
func NewTestreportHandlers(reportSvc testreports.Service, resultSvc testresults.Service, logger *observability.Logger) *TestreportHandlers {
	return &TestreportHandlers{
		testreports: reportSvc,
		testresults: resultSvc,
		logger:      logger,
	}
}

// RegisterRoutes registers testreport routes
func (h *TestreportHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/testreports/{id}", h.GetTestreport).Methods("GET")
	router.HandleFunc("/testreports/{id}", h.UpdateTestreport).Methods("PUT")
	router.HandleFunc("/testreports/{id}", h.DeleteTestreport).Methods("DELETE")

	router.HandleFunc("/testreports/{id}/testresults", h.ListTestresults).Methods("GET")
}

// GetTestreport retrieves a testreport. Allowed to members of its account.
func (h *TestreportHandlers) GetTestreport(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	report, err := authz.Authorize(middleware.GetCaller(r), "retrieve", "testreport", func() (*testreports.Testreport, error) {
		return h.testreports.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

// UpdateTestreport updates a testreport. The testlist snapshot stays
// editable here; parent ids do not.
func (h *TestreportHandlers) UpdateTestreport(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req testreports.UpdateTestreportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "update", "testreport", func() (*testreports.Testreport, error) {
		return h.testreports.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.testreports.Update(id, &req); err != nil {
		writeServiceError(w, h.logger, err, "testreport")
		return
	}

	report, err := h.testreports.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "testreport")
		return
	}
	httputil.WriteSuccess(w, report)
}

// DeleteTestreport removes a testreport and all its testresults,
// children first so a failure never orphans them
func (h *TestreportHandlers) DeleteTestreport(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	report, err := authz.Authorize(middleware.GetCaller(r), "delete", "testreport", func() (*testreports.Testreport, error) {
		return h.testreports.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	deleted, err := h.testresults.DeleteByReport(report.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to delete testresults: %w", err))
		return
	}
	h.logger.WithField("testreport_id", report.ID).WithField("testresults_deleted", deleted).Debug("cascading testreport delete")

	if err := h.testreports.Delete(report.ID); err != nil {
		writeServiceError(w, h.logger, err, "testreport")
		return
	}
	httputil.WriteNoContent(w)
}

// ListTestresults returns a report's results in position order
func (h *TestreportHandlers) ListTestresults(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	report, err := authz.Authorize(middleware.GetCaller(r), "retrieve testresults of", "testreport", func() (*testreports.Testreport, error) {
		return h.testreports.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	list, err := h.testresults.ListByReport(report.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list testresults: %w", err))
		return
	}
	httputil.WriteSuccess(w, emptyList(list))
}
