package testchecks

// Service defines the testcheck repository operations
type Service interface {
	Create(check *Testcheck) error
	GetByID(id string) (*Testcheck, error)
	Update(id string, updates *UpdateTestcheckRequest) error
	Delete(id string) error
	DeleteByTestlist(testlistID string) (int64, error)
	ListByTestlist(testlistID string) ([]*Testcheck, error)
	Reorder(testlistID string, orderedIDs []string) (int64, error)
}

var _ Service = (*PostgresService)(nil)
