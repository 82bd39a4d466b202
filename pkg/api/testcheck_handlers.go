package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/testchecks"
)

// TestcheckHandlers handles testcheck-related HTTP requests
type TestcheckHandlers struct {
	testchecks testchecks.Service
	logger     *observability.Logger
}

// NewTestcheckHandlers creates a new TestcheckHandlers
func NewTestcheckHandlers(checkSvc testchecks.Service, logger *observability.Logger) *TestcheckHandlers {
	return &TestcheckHandlers{testchecks: checkSvc, logger: logger}
}

// RegisterRoutes registers testcheck routes
func (h *TestcheckHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/testchecks/{id}", h.GetTestcheck).Methods("GET")
	router.HandleFunc("/testchecks/{id}", h.UpdateTestcheck).Methods("PUT")
	router.HandleFunc("/testchecks/{id}", h.DeleteTestcheck).Methods("DELETE")
}

// GetTestcheck retrieves a testcheck. Allowed to members of its account.
func (h *TestcheckHandlers) GetTestcheck(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	check, err := authz.Authorize(middleware.GetCaller(r), "retrieve", "testcheck", func() (*testchecks.Testcheck, error) {
		return h.testchecks.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, check)
}

// UpdateTestcheck updates a testcheck. Position is only changed via the
// testlist-level reorder operation.
func (h *TestcheckHandlers) UpdateTestcheck(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req testchecks.UpdateTestcheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "update", "testcheck", func() (*testchecks.Testcheck, error) {
		return h.testchecks.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.testchecks.Update(id, &req); err != nil {
		writeServiceError(w, h.logger, err, "testcheck")
		return
	}

	check, err := h.testchecks.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "testcheck")
		return
	}
	httputil.WriteSuccess(w, check)
}

// DeleteTestcheck removes a testcheck. Positions of the remaining
// checks keep their values; gaps are tolerated until the next reorder.
func (h *TestcheckHandlers) DeleteTestcheck(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "delete", "testcheck", func() (*testchecks.Testcheck, error) {
		return h.testchecks.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.testchecks.Delete(id); err != nil {
		writeServiceError(w, h.logger, err, "testcheck")
		return
	}
	httputil.WriteNoContent(w)
}
