// Package authz implements the tenancy authorization decision applied
// by every protected resource endpoint.
package authz

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/identity"
	"github.com/testboss/testboss/pkg/sessions"
	"github.com/testboss/testboss/pkg/storage"
)

// Caller is an authenticated principal: the resolved user plus the
// active session the request's token was bound to.
type Caller struct {
	User    *identity.User
	Session *sessions.Session
}

// Resource is anything scoped to an account. Descendant entities carry
// a denormalized account id so one fetch suffices for the check.
type Resource interface {
	OwnerAccountID() string
}

// Authorize resolves whether the caller may perform verb on the noun
// resource produced by fetch, and returns the fetched resource so
// callers avoid a second lookup. The decision procedure:
//
//  1. no authenticated caller: Unauthorized;
//  2. admin role: fetch and grant (NotFound if absent);
//  3. a non-admin with zero memberships is denied outright;
//  4. fetch; absent ids are reported as NotFound, not Forbidden;
//  5. grant iff the caller's memberships contain the resource's
//     owning account.
//
// For create-child operations, pass a fetch of the PARENT: the child
// must inherit its ancestry ids from the parent returned here, never
// from client input.
func Authorize[R Resource](caller *Caller, verb, noun string, fetch func() (R, error)) (R, error) {
	var zero R

	if caller == nil || caller.User == nil {
		return zero, httputil.NewError(httputil.Unauthorized, "Invalid token")
	}

	if caller.User.IsAdmin() {
		return fetchResource(noun, fetch)
	}

	if len(caller.User.Accounts) == 0 {
		return zero, forbidden(verb, noun)
	}

	resource, err := fetchResource(noun, fetch)
	if err != nil {
		return zero, err
	}

	if !caller.User.MemberOf(resource.OwnerAccountID()) {
		return zero, forbidden(verb, noun)
	}

	return resource, nil
}

func fetchResource[R Resource](noun string, fetch func() (R, error)) (R, error) {
	resource, err := fetch()
	if err != nil {
		var zero R
		if errors.Is(err, storage.ErrNotFound) {
			return zero, httputil.WrapError(httputil.NotFound, title(noun)+" not found", err)
		}
		return zero, httputil.Internalf("failed to fetch %s: %w", noun, err)
	}
	return resource, nil
}

func forbidden(verb, noun string) *httputil.Error {
	return httputil.NewError(httputil.Forbidden,
		fmt.Sprintf("You are not allowed to %s this %s", verb, noun))
}

func title(noun string) string {
	if noun == "" {
		return noun
	}
	runes := []rune(noun)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
