package identity

// Service defines the identity store operations
type Service interface {
	Create(user *User, password string) error
	GetByID(id string) (*User, error)
	GetByEmail(email string) (*User, error)
	VerifyCredentials(email, password string) (*User, error)
	Update(id string, updates *UpdateUserRequest) error
	ChangePassword(id, newPassword string) error
	Delete(id string) error
	List(skip, limit int, sortBy, sortDir string) ([]*User, int, error)
}

var _ Service = (*PostgresService)(nil)
