// Package testlists holds testlists, the ordered containers of
// testchecks within a project.
package testlists

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/testboss/testboss/pkg/storage"
)

// Testlist carries both project_id and a denormalized account_id; the
// two must never diverge from the parent project's.
type Testlist struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerAccountID returns the owning account for authorization
func (t *Testlist) OwnerAccountID() string {
	return t.AccountID
}

// UpdateTestlistRequest is a partial update; parent ids are not updatable
type UpdateTestlistRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

const testlistColumns = "id, account_id, project_id, name, description, created_at, updated_at"

// PostgresService implements the testlist repository using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new testlist, stamping created_at = updated_at = now.
// AccountID and ProjectID must come from the verified parent project.
func (s *PostgresService) Create(testlist *Testlist) error {
	if testlist.ID == "" {
		testlist.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	testlist.CreatedAt = now
	testlist.UpdatedAt = now

	query := `
		INSERT INTO testlists (id, account_id, project_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(query, testlist.ID, testlist.AccountID, testlist.ProjectID,
		testlist.Name, testlist.Description, testlist.CreatedAt, testlist.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create testlist: %w", err)
	}

	return nil
}

// GetByID retrieves a testlist by id
func (s *PostgresService) GetByID(id string) (*Testlist, error) {
	query := fmt.Sprintf("SELECT %s FROM testlists WHERE id = $1", testlistColumns)
	testlist := &Testlist{}
	err := s.db.QueryRow(query, id).Scan(
		&testlist.ID, &testlist.AccountID, &testlist.ProjectID,
		&testlist.Name, &testlist.Description, &testlist.CreatedAt, &testlist.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("testlist: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get testlist: %w", err)
	}
	return testlist, nil
}

// Update applies a partial update and re-stamps updated_at
func (s *PostgresService) Update(id string, updates *UpdateTestlistRequest) error {
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

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE testlists SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update testlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("testlist: %w", storage.ErrNotFound)
	}

	return nil
}

// Delete removes a testlist row. Cascading deletion of its testchecks
// is orchestrated by the caller, children first.
func (s *PostgresService) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM testlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete testlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("testlist: %w", storage.ErrNotFound)
	}

	return nil
}

// ListByProject returns all testlists owned by a project
func (s *PostgresService) ListByProject(projectID string) ([]*Testlist, error) {
	query := fmt.Sprintf("SELECT %s FROM testlists WHERE project_id = $1 ORDER BY created_at", testlistColumns)
	rows, err := s.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list testlists: %w", err)
	}
	defer rows.Close()

	var testlists []*Testlist
	for rows.Next() {
		testlist := &Testlist{}
		if err := rows.Scan(
			&testlist.ID, &testlist.AccountID, &testlist.ProjectID,
			&testlist.Name, &testlist.Description, &testlist.CreatedAt, &testlist.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan testlist: %w", err)
		}
		testlists = append(testlists, testlist)
	}

	return testlists, nil
}
