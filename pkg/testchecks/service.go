// Package testchecks holds the ordered checks inside a testlist.
package testchecks

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/testboss/testboss/pkg/storage"
)

// Testcheck is a single check; position is a zero-based ordinal unique
// within its testlist.
type Testcheck struct {
	ID          string    `json:"id"`
	TestlistID  string    `json:"testlist_id"`
	ProjectID   string    `json:"project_id"`
	AccountID   string    `json:"account_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Expected    string    `json:"expected"`
	Tags        []string  `json:"tags"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerAccountID returns the owning account for authorization
func (t *Testcheck) OwnerAccountID() string {
	return t.AccountID
}

// UpdateTestcheckRequest is a partial update; parent ids and position
// are not updatable here (reordering has its own operation)
type UpdateTestcheckRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Expected    *string   `json:"expected,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

const testcheckColumns = "id, testlist_id, project_id, account_id, name, description, expected, tags, position, created_at, updated_at"

// PostgresService implements the testcheck repository using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new testcheck at the next free position of its
// testlist: max(existing positions) + 1, or 0 if none exist.
func (s *PostgresService) Create(check *Testcheck) error {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	if check.Tags == nil {
		check.Tags = []string{}
	}
	now := time.Now().UTC()
	check.CreatedAt = now
	check.UpdatedAt = now

	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(position) + 1, 0) FROM testchecks WHERE testlist_id = $1`,
		check.TestlistID,
	).Scan(&check.Position)
	if err != nil {
		return fmt.Errorf("failed to get next position: %w", err)
	}

	tagsJSON, err := json.Marshal(check.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO testchecks (id, testlist_id, project_id, account_id, name, description, expected, tags, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.Exec(query, check.ID, check.TestlistID, check.ProjectID, check.AccountID,
		check.Name, check.Description, check.Expected, tagsJSON, check.Position,
		check.CreatedAt, check.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create testcheck: %w", err)
	}

	return nil
}

// GetByID retrieves a testcheck by id
func (s *PostgresService) GetByID(id string) (*Testcheck, error) {
	query := fmt.Sprintf("SELECT %s FROM testchecks WHERE id = $1", testcheckColumns)
	return s.scanTestcheck(s.db.QueryRow(query, id))
}

// Update applies a partial update and re-stamps updated_at
func (s *PostgresService) Update(id string, updates *UpdateTestcheckRequest) error {
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
	if updates.Expected != nil {
		setClauses = append(setClauses, fmt.Sprintf("expected = $%d", argPos))
		args = append(args, *updates.Expected)
		argPos++
	}
	if updates.Tags != nil {
		tagsJSON, err := json.Marshal(*updates.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("tags = $%d", argPos))
		args = append(args, tagsJSON)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE testchecks SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update testcheck: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("testcheck: %w", storage.ErrNotFound)
	}

	return nil
}

// Delete removes a testcheck
func (s *PostgresService) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM testchecks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete testcheck: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("testcheck: %w", storage.ErrNotFound)
	}

	return nil
}

// DeleteByTestlist removes all testchecks of a testlist and returns
// how many were removed. Used by the cascading testlist delete.
func (s *PostgresService) DeleteByTestlist(testlistID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM testchecks WHERE testlist_id = $1`, testlistID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete testchecks: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// ListByTestlist returns a testlist's checks in position order
func (s *PostgresService) ListByTestlist(testlistID string) ([]*Testcheck, error) {
	query := fmt.Sprintf("SELECT %s FROM testchecks WHERE testlist_id = $1 ORDER BY position", testcheckColumns)
	rows, err := s.db.Query(query, testlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list testchecks: %w", err)
	}
	defer rows.Close()

	var checks []*Testcheck
	for rows.Next() {
		check, err := s.scanTestcheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}

	return checks, nil
}

// Reorder assigns positions 0..n-1 in the order of the supplied ids.
// The compound filter on (id, testlist_id) rejects ids that belong to
// a different testlist: those entries change nothing and are excluded
// from the returned count.
func (s *PostgresService) Reorder(testlistID string, orderedIDs []string) (int64, error) {
	var changed int64
	for position, id := range orderedIDs {
		result, err := s.db.Exec(
			`UPDATE testchecks SET position = $1 WHERE id = $2 AND testlist_id = $3`,
			position, id, testlistID,
		)
		if err != nil {
			return changed, fmt.Errorf("failed to reorder testcheck %s: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return changed, fmt.Errorf("failed to get rows affected: %w", err)
		}
		changed += rowsAffected
	}

	return changed, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresService) scanTestcheck(row rowScanner) (*Testcheck, error) {
	check := &Testcheck{}
	var tagsJSON []byte
	err := row.Scan(
		&check.ID, &check.TestlistID, &check.ProjectID, &check.AccountID,
		&check.Name, &check.Description, &check.Expected, &tagsJSON, &check.Position,
		&check.CreatedAt, &check.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("testcheck: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan testcheck: %w", err)
	}

	if err := json.Unmarshal(tagsJSON, &check.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	return check, nil
}
