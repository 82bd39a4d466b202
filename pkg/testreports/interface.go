package testreports

// Service defines the testreport repository operations
type Service interface {
	Create(report *Testreport) error
	GetByID(id string) (*Testreport, error)
	Update(id string, updates *UpdateTestreportRequest) error
	Delete(id string) error
	ListByProject(projectID string) ([]*Testreport, error)
}

var _ Service = (*PostgresService)(nil)
