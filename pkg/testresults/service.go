// Package testresults holds per-check outcomes of a testreport. One
// result exists per testcheck of the report, created together with it.
package testresults

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/testboss/testboss/pkg/storage"
	"github.com/testboss/testboss/pkg/testreports"
)

// Testresult carries a denormalized snapshot of its source testcheck,
// taken when the parent testreport was created. Updated flips to true
// on the first result submission.
type Testresult struct {
	ID           string                 `json:"id"`
	AccountID    string                 `json:"account_id"`
	TestreportID string                 `json:"testreport_id"`
	TestcheckID  string                 `json:"testcheck_id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Expected     string                 `json:"expected"`
	Tags         []string               `json:"tags"`
	Position     int                    `json:"position"`
	Updated      bool                   `json:"updated"`
	Pass         bool                   `json:"pass"`
	Flacky       bool                   `json:"flacky"`
	Automated    bool                   `json:"automated"`
	Notes        string                 `json:"notes"`
	URLIssue     string                 `json:"url_issue"`
	URLResult    string                 `json:"url_result"`
	Executors    []testreports.Executor `json:"executors"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// OwnerAccountID returns the owning account for authorization
func (t *Testresult) OwnerAccountID() string {
	return t.AccountID
}

// UpdateTestresultRequest is a result submission: outcome fields only,
// the snapshot is immutable
type UpdateTestresultRequest struct {
	Pass      bool                   `json:"pass"`
	Flacky    bool                   `json:"flacky"`
	Automated bool                   `json:"automated"`
	Notes     string                 `json:"notes"`
	URLIssue  string                 `json:"url_issue"`
	URLResult string                 `json:"url_result"`
	Executors []testreports.Executor `json:"executors"`
}

const testresultColumns = "id, account_id, testreport_id, testcheck_id, name, description, expected, tags, position, updated, pass, flacky, automated, notes, url_issue, url_result, executors, created_at, updated_at"

// PostgresService implements the testresult repository using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new testresult with the snapshot fields already
// filled in from the source testcheck and updated = false
func (s *PostgresService) Create(result *Testresult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.Tags == nil {
		result.Tags = []string{}
	}
	if result.Executors == nil {
		result.Executors = []testreports.Executor{}
	}
	result.Updated = false
	now := time.Now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now

	tagsJSON, err := json.Marshal(result.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	executorsJSON, err := json.Marshal(result.Executors)
	if err != nil {
		return fmt.Errorf("failed to marshal executors: %w", err)
	}

	query := `
		INSERT INTO testresults (id, account_id, testreport_id, testcheck_id, name, description, expected, tags, position, updated, pass, flacky, automated, notes, url_issue, url_result, executors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = s.db.Exec(query, result.ID, result.AccountID, result.TestreportID, result.TestcheckID,
		result.Name, result.Description, result.Expected, tagsJSON, result.Position,
		result.Updated, result.Pass, result.Flacky, result.Automated,
		result.Notes, result.URLIssue, result.URLResult, executorsJSON,
		result.CreatedAt, result.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create testresult: %w", err)
	}

	return nil
}

// GetByID retrieves a testresult by id
func (s *PostgresService) GetByID(id string) (*Testresult, error) {
	query := fmt.Sprintf("SELECT %s FROM testresults WHERE id = $1", testresultColumns)
	return s.scanTestresult(s.db.QueryRow(query, id))
}

// Update records a result submission: outcome fields are written,
// updated flips to true and updated_at is re-stamped
func (s *PostgresService) Update(id string, updates *UpdateTestresultRequest) error {
	executors := updates.Executors
	if executors == nil {
		executors = []testreports.Executor{}
	}
	executorsJSON, err := json.Marshal(executors)
	if err != nil {
		return fmt.Errorf("failed to marshal executors: %w", err)
	}

	query := `
		UPDATE testresults
		SET updated = TRUE, pass = $1, flacky = $2, automated = $3, notes = $4,
		    url_issue = $5, url_result = $6, executors = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := s.db.Exec(query, updates.Pass, updates.Flacky, updates.Automated,
		updates.Notes, updates.URLIssue, updates.URLResult, executorsJSON,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update testresult: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("testresult: %w", storage.ErrNotFound)
	}

	return nil
}

// DeleteByReport removes all testresults of a testreport and returns
// how many were removed. Used by the cascading report delete and by
// the compensating cleanup when report creation fails partway.
func (s *PostgresService) DeleteByReport(testreportID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM testresults WHERE testreport_id = $1`, testreportID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete testresults: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// ListByReport returns a report's results in position order
func (s *PostgresService) ListByReport(testreportID string) ([]*Testresult, error) {
	query := fmt.Sprintf("SELECT %s FROM testresults WHERE testreport_id = $1 ORDER BY position", testresultColumns)
	rows, err := s.db.Query(query, testreportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list testresults: %w", err)
	}
	defer rows.Close()

	var results []*Testresult
	for rows.Next() {
		result, err := s.scanTestresult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresService) scanTestresult(row rowScanner) (*Testresult, error) {
	result := &Testresult{}
	var tagsJSON, executorsJSON []byte
	err := row.Scan(
		&result.ID, &result.AccountID, &result.TestreportID, &result.TestcheckID,
		&result.Name, &result.Description, &result.Expected, &tagsJSON, &result.Position,
		&result.Updated, &result.Pass, &result.Flacky, &result.Automated,
		&result.Notes, &result.URLIssue, &result.URLResult, &executorsJSON,
		&result.CreatedAt, &result.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("testresult: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan testresult: %w", err)
	}

	if err := json.Unmarshal(tagsJSON, &result.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(executorsJSON, &result.Executors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal executors: %w", err)
	}

	return result, nil
}
