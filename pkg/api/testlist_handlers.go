package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/testchecks"
	"github.com/testboss/testboss/pkg/testlists"
	"github.com/testboss/testboss/pkg/testreports"
	"github.com/testboss/testboss/pkg/testresults"
)

// TestlistHandlers handles testlist-related HTTP requests
type TestlistHandlers struct {
	testlists   testlists.Service
	testchecks  testchecks.Service
	testreports testreports.Service
	testresults testresults.Service
	logger      *observability.Logger
}

// NewTestlistHandlers creates a new TestlistHandlers
func NewTestlistHandlers(
	testlistSvc testlists.Service,
	checkSvc testchecks.Service,
	reportSvc testreports.Service,
	resultSvc testresults.Service,
	logger *observability.Logger,
) *TestlistHandlers {
	return &TestlistHandlers{
		testlists:   testlistSvc,
		testchecks:  checkSvc,
		testreports: reportSvc,
		testresults: resultSvc,
		logger:      logger,
	}
}

// RegisterRoutes registers testlist routes
func (h *TestlistHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/testlists/{id}", h.GetTestlist).Methods("GET")
	router.HandleFunc("/testlists/{id}", h.UpdateTestlist).Methods("PUT")
	router.HandleFunc("/testlists/{id}", h.DeleteTestlist).Methods("DELETE")

	router.HandleFunc("/testlists/{id}/testchecks", h.ListTestchecks).Methods("GET")
	router.HandleFunc("/testlists/{id}/testchecks", h.CreateTestcheck).Methods("POST")
	router.HandleFunc("/testlists/{id}/testchecks", h.ReorderTestchecks).Methods("PUT")
	router.HandleFunc("/testlists/{id}/testreports", h.CreateTestreport).Methods("POST")
}

// GetTestlist retrieves a testlist. Allowed to members of its account.
func (h *TestlistHandlers) GetTestlist(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	testlist, err := authz.Authorize(middleware.GetCaller(r), "retrieve", "testlist", func() (*testlists.Testlist, error) {
		return h.testlists.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, testlist)
}

// UpdateTestlist updates a testlist. Allowed to members of its account.
func (h *TestlistHandlers) UpdateTestlist(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req testlists.UpdateTestlistRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	_, err := authz.Authorize(middleware.GetCaller(r), "update", "testlist", func() (*testlists.Testlist, error) {
		return h.testlists.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	if err := h.testlists.Update(id, &req); err != nil {
		writeServiceError(w, h.logger, err, "testlist")
		return
	}

	testlist, err := h.testlists.GetByID(id)
	if err != nil {
		writeServiceError(w, h.logger, err, "testlist")
		return
	}
	httputil.WriteSuccess(w, testlist)
}

// DeleteTestlist removes a testlist and all its testchecks, children
// first so a failure never orphans them
func (h *TestlistHandlers) DeleteTestlist(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	testlist, err := authz.Authorize(middleware.GetCaller(r), "delete", "testlist", func() (*testlists.Testlist, error) {
		return h.testlists.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	deleted, err := h.testchecks.DeleteByTestlist(testlist.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to delete testchecks: %w", err))
		return
	}
	h.logger.WithField("testlist_id", testlist.ID).WithField("testchecks_deleted", deleted).Debug("cascading testlist delete")

	if err := h.testlists.Delete(testlist.ID); err != nil {
		writeServiceError(w, h.logger, err, "testlist")
		return
	}
	httputil.WriteNoContent(w)
}

// ListTestchecks returns a testlist's checks in position order
func (h *TestlistHandlers) ListTestchecks(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	testlist, err := authz.Authorize(middleware.GetCaller(r), "retrieve testchecks of", "testlist", func() (*testlists.Testlist, error) {
		return h.testlists.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	list, err := h.testchecks.ListByTestlist(testlist.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list testchecks: %w", err))
		return
	}
	httputil.WriteSuccess(w, emptyList(list))
}

// CreateTestcheckRequest carries a new testcheck; the parent ids come
// from the verified testlist, never from the body
type CreateTestcheckRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Expected    string   `json:"expected"`
	Tags        []string `json:"tags"`
}

// CreateTestcheck appends a testcheck at the end of a testlist
func (h *TestlistHandlers) CreateTestcheck(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req CreateTestcheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	testlist, err := authz.Authorize(middleware.GetCaller(r), "create testchecks in", "testlist", func() (*testlists.Testlist, error) {
		return h.testlists.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	check := &testchecks.Testcheck{
		TestlistID:  testlist.ID,
		ProjectID:   testlist.ProjectID,
		AccountID:   testlist.AccountID,
		Name:        req.Name,
		Description: req.Description,
		Expected:    req.Expected,
		Tags:        req.Tags,
	}
	if err := h.testchecks.Create(check); err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create testcheck: %w", err))
		return
	}
	httputil.WriteCreated(w, check)
}

// ReorderResponse reports how many testchecks actually moved
type ReorderResponse struct {
	ModifiedCount int64 `json:"modified_count"`
}

// ReorderTestchecks assigns positions 0..n-1 following the id order in
// the body. Ids from other testlists are ignored and excluded from the
// returned count.
func (h *TestlistHandlers) ReorderTestchecks(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var orderedIDs []string
	if !httputil.ParseJSONOrError(w, r, &orderedIDs) {
		return
	}

	testlist, err := authz.Authorize(middleware.GetCaller(r), "reorder testchecks of", "testlist", func() (*testlists.Testlist, error) {
		return h.testlists.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	changed, err := h.testchecks.Reorder(testlist.ID, orderedIDs)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to reorder testchecks: %w", err))
		return
	}
	httputil.WriteSuccess(w, ReorderResponse{ModifiedCount: changed})
}

// CreateTestreportRequest carries the execution parameters; name and
// description are snapshotted from the testlist, not taken from the body
type CreateTestreportRequest struct {
	ExecutionMode string                 `json:"execution_mode"`
	Executors     []testreports.Executor `json:"executors"`
}

// CreateTestreport creates a testreport from a testlist: the report
// snapshots the testlist's name and description, and one testresult is
// created per testcheck, in position order. A failure partway rolls
// back the report and any results already created.
func (h *TestlistHandlers) CreateTestreport(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req CreateTestreportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	testlist, err := authz.Authorize(middleware.GetCaller(r), "create testreports from", "testlist", func() (*testlists.Testlist, error) {
		return h.testlists.GetByID(id)
	})
	if err != nil {
		httputil.WriteAPIError(w, h.logger, err)
		return
	}

	checks, err := h.testchecks.ListByTestlist(testlist.ID)
	if err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to list testchecks: %w", err))
		return
	}

	report := &testreports.Testreport{
		AccountID:     testlist.AccountID,
		ProjectID:     testlist.ProjectID,
		TestlistID:    testlist.ID,
		Name:          testlist.Name,
		Description:   testlist.Description,
		ExecutionMode: req.ExecutionMode,
		Executors:     req.Executors,
	}
	if err := h.testreports.Create(report); err != nil {
		httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create testreport: %w", err))
		return
	}

	for _, check := range checks {
		result := &testresults.Testresult{
			AccountID:    report.AccountID,
			TestreportID: report.ID,
			TestcheckID:  check.ID,
			Name:         check.Name,
			Description:  check.Description,
			Expected:     check.Expected,
			Tags:         check.Tags,
			Position:     check.Position,
			Executors:    report.Executors,
		}
		if err := h.testresults.Create(result); err != nil {
			h.rollbackTestreport(report.ID)
			httputil.WriteAPIError(w, h.logger, httputil.Internalf("failed to create testresult for testcheck %s: %w", check.ID, err))
			return
		}
	}

	httputil.WriteCreated(w, report)
}

// rollbackTestreport compensates a failed report creation by removing
// the report and any results already inserted. Cleanup failures are
// logged, the original error still reaches the client.
func (h *TestlistHandlers) rollbackTestreport(reportID string) {
	if _, err := h.testresults.DeleteByReport(reportID); err != nil {
		h.logger.WithError(err).WithField("testreport_id", reportID).Error("failed to clean up testresults after aborted report creation")
	}
	if err := h.testreports.Delete(reportID); err != nil {
		h.logger.WithError(err).WithField("testreport_id", reportID).Error("failed to clean up testreport after aborted report creation")
	}
}
