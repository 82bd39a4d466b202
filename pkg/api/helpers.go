package api

import (
	"errors"
	"net/http"
	"unicode"

	"github.com/testboss/testboss/pkg/authz"
	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/storage"
)

// callerOrUnauthorized extracts the authenticated caller, writing an
// Unauthorized response when the middleware did not set one
func callerOrUnauthorized(w http.ResponseWriter, r *http.Request, logger *observability.Logger) (*authz.Caller, bool) {
	caller := middleware.GetCaller(r)
	if caller == nil || caller.User == nil {
		httputil.WriteAPIError(w, logger, httputil.NewError(httputil.Unauthorized, "Invalid token"))
		return nil, false
	}
	return caller, true
}

// requireAdmin denies callers without the admin role
func requireAdmin(w http.ResponseWriter, caller *authz.Caller, logger *observability.Logger) bool {
	if !caller.User.IsAdmin() {
		httputil.WriteAPIError(w, logger,
			httputil.NewError(httputil.Forbidden, "You are not allowed to perform this action"))
		return false
	}
	return true
}

// writeServiceError maps a repository error for an already-authorized
// operation: absent rows become NotFound, everything else Internal
func writeServiceError(w http.ResponseWriter, logger *observability.Logger, err error, noun string) {
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteAPIError(w, logger, httputil.WrapError(httputil.NotFound, title(noun)+" not found", err))
		return
	}
	httputil.WriteAPIError(w, logger, httputil.Internalf("%s operation failed: %w", noun, err))
}

// parsePageParams reads page/per_page/sort_by/sort_dir query params
// and converts them to skip/limit
func parsePageParams(w http.ResponseWriter, r *http.Request) (skip, limit int, sortBy, sortDir string, ok bool) {
	page, err := httputil.ParseQueryInt(r, "page", 1)
	if err != nil || page < 1 {
		httputil.WriteBadRequest(w, "page must be a positive integer")
		return 0, 0, "", "", false
	}
	perPage, err := httputil.ParseQueryInt(r, "per_page", 20)
	if err != nil || perPage < 1 {
		httputil.WriteBadRequest(w, "per_page must be a positive integer")
		return 0, 0, "", "", false
	}

	sortBy = httputil.ParseQueryString(r, "sort_by", "created_at")
	sortDir = httputil.ParseQueryString(r, "sort_dir", "asc")
	return (page - 1) * perPage, perPage, sortBy, sortDir, true
}

func title(noun string) string {
	if noun == "" {
		return noun
	}
	runes := []rune(noun)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// emptyList substitutes an empty slice so list endpoints never render
// JSON null
func emptyList[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
