package sessions

// Service defines the session store operations
type Service interface {
	Create(userID string) (*Session, error)
	GetByID(id string) (*Session, error)
	Renew(id string) error
	Revoke(id string) error
	DeleteExpired() (int64, error)
}

var _ Service = (*PostgresService)(nil)
