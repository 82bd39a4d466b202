package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testboss/testboss/pkg/auth"
	"github.com/testboss/testboss/pkg/identity"
	"github.com/testboss/testboss/pkg/sessions"
)

type fakeIdentityService struct {
	identity.Service
	user     *identity.User
	password string
}

func (f *fakeIdentityService) VerifyCredentials(email, password string) (*identity.User, error) {
	if f.user == nil || f.user.Email != email || f.password != password {
		return nil, nil
	}
	return f.user, nil
}

type fakeSessionService struct {
	sessions.Service
	created *sessions.Session
}

func (f *fakeSessionService) Create(userID string) (*sessions.Session, error) {
	f.created = &sessions.Session{
		ID:        "sess-new",
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}
	return f.created, nil
}

func newLoginHandlers(user *identity.User, password string) (*SessionHandlers, *fakeSessionService) {
	sessionSvc := &fakeSessionService{}
	users := &fakeIdentityService{user: user, password: password}
	tokens := auth.NewTokenService("test-secret", time.Minute)
	return NewSessionHandlers(users, sessionSvc, tokens, testLogger()), sessionSvc
}

func doLogin(h *SessionHandlers, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/login", bytes.NewReader(payload))
	h.Login(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	user := &identity.User{
		ID:       "user-1",
		Email:    "a@b.com",
		Accounts: []identity.Membership{{AccountID: "acc-1"}},
	}
	h, sessionSvc := newLoginHandlers(user, "correct horse battery")

	rec := doLogin(h, LoginRequest{Email: "a@b.com", Password: "correct horse battery"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, []identity.Membership{{AccountID: "acc-1"}}, resp.User.Accounts)

	require.NotNil(t, sessionSvc.created)
	assert.Equal(t, "user-1", sessionSvc.created.UserID)

	// The password hash never leaves the server
	assert.NotContains(t, rec.Body.String(), "pwdhash")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLogin_WrongPassword(t *testing.T) {
	user := &identity.User{ID: "user-1", Email: "a@b.com"}
	h, _ := newLoginHandlers(user, "correct horse battery")

	rec := doLogin(h, LoginRequest{Email: "a@b.com", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Error Unauthorized: Invalid credentials.", decodeMessage(t, rec.Body.Bytes()))
}

func TestLogin_UnknownEmail(t *testing.T) {
	h, _ := newLoginHandlers(&identity.User{ID: "user-1", Email: "a@b.com"}, "correct horse battery")

	rec := doLogin(h, LoginRequest{Email: "nobody@b.com", Password: "correct horse battery"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Error Unauthorized: Invalid credentials.", decodeMessage(t, rec.Body.Bytes()))
}

func TestLogin_MissingFields(t *testing.T) {
	h, _ := newLoginHandlers(nil, "")

	tests := []struct {
		name string
		body LoginRequest
	}{
		{"missing email", LoginRequest{Password: "something"}},
		{"missing password", LoginRequest{Email: "a@b.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doLogin(h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMe_ReturnsCaller(t *testing.T) {
	h, _ := newLoginHandlers(nil, "")
	caller := memberCaller("acc-1")

	rec := httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodGet, "/sessions/me", nil), caller)
	h.Me(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user identity.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, caller.User.ID, user.ID)
}

func TestMe_NoCaller(t *testing.T) {
	h, _ := newLoginHandlers(nil, "")

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/sessions/me", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Error Unauthorized: Invalid token.", decodeMessage(t, rec.Body.Bytes()))
}
