// Package accounts holds the tenancy root: every descendant resource
// is scoped to exactly one account.
package accounts

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/testboss/testboss/pkg/storage"
)

// Account is the root of the tenancy tree
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerAccountID makes Account authorizable: the owning account of an
// account is itself
func (a *Account) OwnerAccountID() string {
	return a.ID
}

// UpdateAccountRequest is a partial update; nil fields are left unchanged
type UpdateAccountRequest struct {
	Name *string `json:"name,omitempty"`
}

var sortableFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

// PostgresService implements the account repository using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new account, stamping created_at = updated_at = now
func (s *PostgresService) Create(account *Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `INSERT INTO accounts (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Exec(query, account.ID, account.Name, account.CreatedAt, account.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by id
func (s *PostgresService) GetByID(id string) (*Account, error) {
	query := `SELECT id, name, created_at, updated_at FROM accounts WHERE id = $1`
	account := &Account{}
	err := s.db.QueryRow(query, id).Scan(&account.ID, &account.Name, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// Update applies a partial update and re-stamps updated_at
func (s *PostgresService) Update(id string, updates *UpdateAccountRequest) error {
	if updates.Name == nil {
		return nil
	}

	query := `UPDATE accounts SET name = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.Exec(query, *updates.Name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account: %w", storage.ErrNotFound)
	}

	return nil
}

// Delete removes an account
func (s *PostgresService) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account: %w", storage.ErrNotFound)
	}

	return nil
}

// List returns a page of accounts plus the total count. The sort field
// is restricted to the allow-list.
func (s *PostgresService) List(skip, limit int, sortBy, sortDir string) ([]*Account, int, error) {
	column, ok := sortableFields[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if strings.EqualFold(sortDir, "desc") {
		direction = "DESC"
	}

	query := fmt.Sprintf("SELECT id, name, created_at, updated_at FROM accounts ORDER BY %s %s OFFSET $1 LIMIT $2",
		column, direction)
	rows, err := s.db.Query(query, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account := &Account{}
		if err := rows.Scan(&account.ID, &account.Name, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	return accounts, total, nil
}
