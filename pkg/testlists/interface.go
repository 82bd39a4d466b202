package testlists

// Service defines the testlist repository operations
type Service interface {
	Create(testlist *Testlist) error
	GetByID(id string) (*Testlist, error)
	Update(id string, updates *UpdateTestlistRequest) error
	Delete(id string) error
	ListByProject(projectID string) ([]*Testlist, error)
}

var _ Service = (*PostgresService)(nil)
