// Package projects holds projects, the direct children of accounts.
package projects

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/testboss/testboss/pkg/storage"
)

// Project belongs to exactly one account; account_id is immutable
// after creation.
type Project struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	Description   string    `json:"description"`
	RepositoryURL string    `json:"repository_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OwnerAccountID returns the owning account for authorization
func (p *Project) OwnerAccountID() string {
	return p.AccountID
}

// UpdateProjectRequest is a partial update; account_id is not updatable
type UpdateProjectRequest struct {
	Name          *string `json:"name,omitempty"`
	Version       *string `json:"version,omitempty"`
	Description   *string `json:"description,omitempty"`
	RepositoryURL *string `json:"repository_url,omitempty"`
}

const projectColumns = "id, account_id, name, version, description, repository_url, created_at, updated_at"

// PostgresService implements the project repository using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new project, stamping created_at = updated_at = now.
// AccountID must already be set from the verified parent account.
func (s *PostgresService) Create(project *Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	query := `
		INSERT INTO projects (id, account_id, name, version, description, repository_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.Exec(query, project.ID, project.AccountID, project.Name, project.Version,
		project.Description, project.RepositoryURL, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by id
func (s *PostgresService) GetByID(id string) (*Project, error) {
	query := fmt.Sprintf("SELECT %s FROM projects WHERE id = $1", projectColumns)
	project := &Project{}
	err := s.db.QueryRow(query, id).Scan(
		&project.ID, &project.AccountID, &project.Name, &project.Version,
		&project.Description, &project.RepositoryURL, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// Update applies a partial update and re-stamps updated_at
func (s *PostgresService) Update(id string, updates *UpdateProjectRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Version != nil {
		setClauses = append(setClauses, fmt.Sprintf("version = $%d", argPos))
		args = append(args, *updates.Version)
		argPos++
	}
	if updates.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *updates.Description)
		argPos++
	}
	if updates.RepositoryURL != nil {
		setClauses = append(setClauses, fmt.Sprintf("repository_url = $%d", argPos))
		args = append(args, *updates.RepositoryURL)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project: %w", storage.ErrNotFound)
	}

	return nil
}

// Delete removes a project
func (s *PostgresService) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project: %w", storage.ErrNotFound)
	}

	return nil
}

// ListByAccount returns all projects owned by an account
func (s *PostgresService) ListByAccount(accountID string) ([]*Project, error) {
	query := fmt.Sprintf("SELECT %s FROM projects WHERE account_id = $1 ORDER BY created_at", projectColumns)
	rows, err := s.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project := &Project{}
		if err := rows.Scan(
			&project.ID, &project.AccountID, &project.Name, &project.Version,
			&project.Description, &project.RepositoryURL, &project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, nil
}
