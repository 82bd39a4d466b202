package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/contextkeys"
	"github.com/testboss/testboss/pkg/identity"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/sessions"
	"github.com/testboss/testboss/pkg/storage"
	"github.com/testboss/testboss/pkg/testchecks"
	"github.com/testboss/testboss/pkg/testlists"
	"github.com/testboss/testboss/pkg/testreports"
	"github.com/testboss/testboss/pkg/testresults"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func adminCaller() *authz.Caller {
	return &authz.Caller{
		User:    &identity.User{ID: "admin-1", Email: "admin@example.com", Roles: []string{identity.RoleAdmin}},
		Session: &sessions.Session{ID: "sess-admin", UserID: "admin-1"},
	}
}

func memberCaller(accountID string) *authz.Caller {
	return &authz.Caller{
		User: &identity.User{
			ID:       "user-1",
			Email:    "member@example.com",
			Accounts: []identity.Membership{{AccountID: accountID}},
		},
		Session: &sessions.Session{ID: "sess-1", UserID: "user-1"},
	}
}

// withCaller injects an authenticated caller the way the auth
// middleware would
func withCaller(r *http.Request, caller *authz.Caller) *http.Request {
	return r.WithContext(contextkeys.WithCaller(r.Context(), caller))
}

func decodeMessage(t *testing.T, body []byte) string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(body, &m))
	return m["message"]
}

type fakeTestlistService struct {
	testlists.Service
	testlist *testlists.Testlist
}

func (f *fakeTestlistService) GetByID(id string) (*testlists.Testlist, error) {
	if f.testlist == nil || f.testlist.ID != id {
		return nil, fmt.Errorf("testlist: %w", storage.ErrNotFound)
	}
	return f.testlist, nil
}

type fakeTestcheckService struct {
	testchecks.Service
	checks       []*testchecks.Testcheck
	reorderCount int64
	reorderIDs   []string
}

func (f *fakeTestcheckService) ListByTestlist(testlistID string) ([]*testchecks.Testcheck, error) {
	return f.checks, nil
}

func (f *fakeTestcheckService) Reorder(testlistID string, orderedIDs []string) (int64, error) {
	f.reorderIDs = orderedIDs
	return f.reorderCount, nil
}

type fakeTestreportService struct {
	testreports.Service
	created   *testreports.Testreport
	deletedID string
}

func (f *fakeTestreportService) Create(report *testreports.Testreport) error {
	report.ID = "report-1"
	f.created = report
	return nil
}

func (f *fakeTestreportService) Delete(id string) error {
	f.deletedID = id
	return nil
}

type fakeTestresultService struct {
	testresults.Service
	created         []*testresults.Testresult
	failAfter       int
	deletedReportID string
}

func (f *fakeTestresultService) Create(result *testresults.Testresult) error {
	if f.failAfter > 0 && len(f.created) >= f.failAfter {
		return fmt.Errorf("insert failed")
	}
	f.created = append(f.created, result)
	return nil
}

func (f *fakeTestresultService) DeleteByReport(testreportID string) (int64, error) {
	f.deletedReportID = testreportID
	return int64(len(f.created)), nil
}
