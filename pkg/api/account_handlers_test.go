package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testboss/testboss/pkg/accounts"
	"github.com/testboss/testboss/pkg/projects"
	"github.com/testboss/testboss/pkg/storage"
)

type fakeAccountService struct {
	accounts.Service
	account  *accounts.Account
	listSkip int
	listGot  bool
}

func (f *fakeAccountService) GetByID(id string) (*accounts.Account, error) {
	if f.account == nil || f.account.ID != id {
		return nil, fmt.Errorf("account: %w", storage.ErrNotFound)
	}
	return f.account, nil
}

func (f *fakeAccountService) List(skip, limit int, sortBy, sortDir string) ([]*accounts.Account, int, error) {
	f.listGot = true
	f.listSkip = skip
	return []*accounts.Account{f.account}, 1, nil
}

type fakeProjectService struct {
	projects.Service
	created *projects.Project
}

func (f *fakeProjectService) Create(project *projects.Project) error {
	project.ID = "proj-new"
	f.created = project
	return nil
}

func (f *fakeProjectService) ListByAccount(accountID string) ([]*projects.Project, error) {
	return nil, nil
}

func newAccountRouter(accountSvc *fakeAccountService, projectSvc *fakeProjectService) *mux.Router {
	router := mux.NewRouter()
	NewAccountHandlers(accountSvc, projectSvc, testLogger()).RegisterRoutes(router)
	return router
}

func TestListAccounts_AdminOnly(t *testing.T) {
	accountSvc := &fakeAccountService{account: &accounts.Account{ID: "acc-1", Name: "acme"}}
	router := newAccountRouter(accountSvc, &fakeProjectService{})

	rec := httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodGet, "/accounts", nil), memberCaller("acc-1"))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Error Forbidden: You are not allowed to perform this action.", decodeMessage(t, rec.Body.Bytes()))
	assert.False(t, accountSvc.listGot)
}

func TestListAccounts_Pagination(t *testing.T) {
	accountSvc := &fakeAccountService{account: &accounts.Account{ID: "acc-1", Name: "acme"}}
	router := newAccountRouter(accountSvc, &fakeProjectService{})

	rec := httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodGet, "/accounts?page=3&per_page=10", nil), adminCaller())
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, accountSvc.listSkip)

	var page struct {
		List  []*accounts.Account `json:"list"`
		Total int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.List, 1)
	assert.Equal(t, "acc-1", page.List[0].ID)
}

func TestCreateProject_InheritsAccountID(t *testing.T) {
	accountSvc := &fakeAccountService{account: &accounts.Account{ID: "acc-1", Name: "acme"}}
	projectSvc := &fakeProjectService{}
	router := newAccountRouter(accountSvc, projectSvc)

	// A forged account_id in the body must be ignored
	payload, err := json.Marshal(map[string]string{
		"name":       "new project",
		"account_id": "acc-stolen",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodPost, "/accounts/acc-1/projects", bytes.NewReader(payload)), memberCaller("acc-1"))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, projectSvc.created)
	assert.Equal(t, "acc-1", projectSvc.created.AccountID)
}

func TestGetAccount_OtherAccountForbidden(t *testing.T) {
	accountSvc := &fakeAccountService{account: &accounts.Account{ID: "acc-1", Name: "acme"}}
	router := newAccountRouter(accountSvc, &fakeProjectService{})

	rec := httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodGet, "/accounts/acc-1", nil), memberCaller("acc-2"))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Error Forbidden: You are not allowed to retrieve this account.", decodeMessage(t, rec.Body.Bytes()))
}
