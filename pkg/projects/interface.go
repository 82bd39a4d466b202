package projects

// Service defines the project repository operations
type Service interface {
	Create(project *Project) error
	GetByID(id string) (*Project, error)
	Update(id string, updates *UpdateProjectRequest) error
	Delete(id string) error
	ListByAccount(accountID string) ([]*Project, error)
}

var _ Service = (*PostgresService)(nil)
