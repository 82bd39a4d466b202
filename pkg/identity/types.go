// Package identity holds user records: credentials, roles and account
// memberships.
package identity

import "time"

// Role tags carried in a user's role set
const (
	RoleAdmin          = "admin"
	RoleAccountManager = "account_manager"
)

// Membership ties a user to an account. The manager flag is carried
// but not currently enforced.
type Membership struct {
	AccountID string `json:"account_id"`
	IsManager bool   `json:"is_manager"`
}

// User is a stored user record. PwdHash is never serialized.
type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	PwdHash   string       `json:"-"`
	Firstname string       `json:"firstname"`
	Lastname  string       `json:"lastname"`
	Roles     []string     `json:"roles"`
	Accounts  []Membership `json:"accounts"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HasRole reports whether the user's role set contains the tag
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// MemberOf reports whether the user's memberships contain the account
func (u *User) MemberOf(accountID string) bool {
	for _, m := range u.Accounts {
		if m.AccountID == accountID {
			return true
		}
	}
	return false
}

// UpdateUserRequest is a partial update; nil fields are left unchanged
type UpdateUserRequest struct {
	Email     *string       `json:"email,omitempty"`
	Firstname *string       `json:"firstname,omitempty"`
	Lastname  *string       `json:"lastname,omitempty"`
	Roles     *[]string     `json:"roles,omitempty"`
	Accounts  *[]Membership `json:"accounts,omitempty"`
}
