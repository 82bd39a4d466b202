package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/testresults"
)

// TestresultHandlers handles testresult-related HTTP requests
type TestresultHandlers struct {
	testresults testresults.Service
	logger      *observability.Logger
}

// NewTestresultHandlers creates a new TestresultHandlers
func NewTestresultHandlers(resultSvc testresults.Service, logger *observability.Logger) *TestresultHandlers {
	return &TestresultHandlers{testresults: resultSvc, logger: logger}
}

// RegisterRoutes registers testresult routes. Results are created with
// their testreport and deleted with it; only read and submit exist here.
func (h *TestresultHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/testresults/{id}", h.GetTestresult).Methods("GET")
	router.HandleFunc("/testresults/{id}", h.UpdateTestresult).Methods("PUT")
}

// GetTestresult retrieves a testresult. Allowed to members of its account.
func (h *TestresultHandlers) GetTestresult(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	result, err := authz.Authorize(middleware.GetCaller(r), "retrieve", "testresult", func() (*testresults.Testresult, error) {
		return h.testresults.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// UpdateTestresult records a result submission: the outcome fields are
// written and the updated flag flips to true. The snapshot taken from
// the source testcheck is immutable.
func (h *TestresultHandlers) UpdateTestresult(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req testresults.UpdateTestresultRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "update", "testresult", func() (*testresults.Testresult, error) {
		return h.testresults.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.testresults.Update(id, &req); err != nil {
		writeServiceError(w, h.logger, err, "testresult")
		return
	}

	result, err := h.testresults.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "testresult")
		return
	}
	httputil.WriteSuccess(w, result)
}
