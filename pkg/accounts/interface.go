package accounts

// Service defines the account repository operations
type Service interface {
	Create(account *Account) error
	GetByID(id string) (*Account, error)
	Update(id string, updates *UpdateAccountRequest) error
	Delete(id string) error
	List(skip, limit int, sortBy, sortDir string) ([]*Account, int, error)
}

var _ Service = (*PostgresService)(nil)
