// Package testreports holds test execution reports. A report snapshots
// its testlist's name and description at creation time.
package testreports

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/testboss/testboss/pkg/storage"
)

// Executor records who runs (part of) an execution and since when
type Executor struct {
	UserID    string    `json:"user_id"`
	StartDate time.Time `json:"start_date"`
}

// Testreport is one execution of a testlist
type Testreport struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	ProjectID     string     `json:"project_id"`
	TestlistID    string     `json:"testlist_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	ExecutionMode string     `json:"execution_mode"`
	Executors     []Executor `json:"executors"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OwnerAccountID returns the owning account for authorization
func (t *Testreport) OwnerAccountID() string {
	return t.AccountID
}

// UpdateTestreportRequest is a partial update; parent ids are not updatable
type UpdateTestreportRequest struct {
	Name          *string     `json:"name,omitempty"`
	Description   *string     `json:"description,omitempty"`
	ExecutionMode *string     `json:"execution_mode,omitempty"`
	Executors     *[]Executor `json:"executors,omitempty"`
}

const testreportColumns = "id, account_id, project_id, testlist_id, name, description, execution_mode, executors, created_at, updated_at"

// PostgresService implements the testreport repository using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new testreport, stamping created_at = updated_at = now.
// Parent ids and the name/description snapshot must come from the
// verified parent testlist.
func (s *PostgresService) Create(report *Testreport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Executors == nil {
		report.Executors = []Executor{}
	}
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now

	executorsJSON, err := json.Marshal(report.Executors)
	if err != nil {
		return fmt.Errorf("failed to marshal executors: %w", err)
	}

	query := `
		INSERT INTO testreports (id, account_id, project_id, testlist_id, name, description, execution_mode, executors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.Exec(query, report.ID, report.AccountID, report.ProjectID, report.TestlistID,
		report.Name, report.Description, report.ExecutionMode, executorsJSON,
		report.CreatedAt, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create testreport: %w", err)
	}

	return nil
}

// GetByID retrieves a testreport by id
func (s *PostgresService) GetByID(id string) (*Testreport, error) {
	query := fmt.Sprintf("SELECT %s FROM testreports WHERE id = $1", testreportColumns)
	return s.scanTestreport(s.db.QueryRow(query, id))
}

// Update applies a partial update and re-stamps updated_at
func (s *PostgresService) Update(id string, updates *UpdateTestreportRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *updates.Description)
		argPos++
	}
	if updates.ExecutionMode != nil {
		setClauses = append(setClauses, fmt.Sprintf("execution_mode = $%d", argPos))
		args = append(args, *updates.ExecutionMode)
		argPos++
	}
	if updates.Executors != nil {
		executorsJSON, err := json.Marshal(*updates.Executors)
		if err != nil {
			return fmt.Errorf("failed to marshal executors: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("executors = $%d", argPos))
		args = append(args, executorsJSON)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE testreports SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update testreport: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("testreport: %w", storage.ErrNotFound)
	}

	return nil
}

// Delete removes a testreport row. Cascading deletion of its
// testresults is orchestrated by the caller, children first.
func (s *PostgresService) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM testreports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete testreport: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("testreport: %w", storage.ErrNotFound)
	}

	return nil
}

// ListByProject returns all testreports owned by a project
func (s *PostgresService) ListByProject(projectID string) ([]*Testreport, error) {
	query := fmt.Sprintf("SELECT %s FROM testreports WHERE project_id = $1 ORDER BY created_at", testreportColumns)
	rows, err := s.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list testreports: %w", err)
	}
	defer rows.Close()

	var reports []*Testreport
	for rows.Next() {
		report, err := s.scanTestreport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresService) scanTestreport(row rowScanner) (*Testreport, error) {
	report := &Testreport{}
	var executorsJSON []byte
	err := row.Scan(
		&report.ID, &report.AccountID, &report.ProjectID, &report.TestlistID,
		&report.Name, &report.Description, &report.ExecutionMode, &executorsJSON,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("testreport: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan testreport: %w", err)
	}

	if err := json.Unmarshal(executorsJSON, &report.Executors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal executors: %w", err)
	}

	return report, nil
}
