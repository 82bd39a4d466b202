package testresults

// Service defines the testresult repository operations
type Service interface {
	Create(result *Testresult) error
	GetByID(id string) (*Testresult, error)
	Update(id string, updates *UpdateTestresultRequest) error
	DeleteByReport(testreportID string) (int64, error)
	ListByReport(testreportID string) ([]*Testresult, error)
}

var _ Service = (*PostgresService)(nil)
