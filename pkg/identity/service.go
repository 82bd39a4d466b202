package identity

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/testboss/testboss/pkg/auth"
	"github.com/testboss/testboss/pkg/storage"
)

// ErrEmailTaken means the email unique index rejected the write
var ErrEmailTaken = errors.New("email already in use")

// sortableFields is the allow-list for List sorting; anything else
// falls back to created_at so client input never reaches the query
var sortableFields = map[string]string{
	"email":      "email",
	"firstname":  "firstname",
	"lastname":   "lastname",
	"created_at": "created_at",
}

const userColumns = "id, email, pwdhash, firstname, lastname, roles, accounts, created_at, updated_at"

// PostgresService implements the identity store using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create inserts a new user, hashing the supplied password and
// stamping created_at = updated_at = now
func (s *PostgresService) Create(user *User, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PwdHash = hash

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	if user.Accounts == nil {
		user.Accounts = []Membership{}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("failed to marshal roles: %w", err)
	}
	accountsJSON, err := json.Marshal(user.Accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	query := `
		INSERT INTO users (id, email, pwdhash, firstname, lastname, roles, accounts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.Exec(query, user.ID, user.Email, user.PwdHash, user.Firstname,
		user.Lastname, rolesJSON, accountsJSON, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by id
func (s *PostgresService) GetByID(id string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	return s.scanUser(s.db.QueryRow(query, id))
}

// GetByEmail retrieves a user by email
func (s *PostgresService) GetByEmail(email string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)
	return s.scanUser(s.db.QueryRow(query, email))
}

// VerifyCredentials returns the user when email and password match.
// Unknown email and wrong password are indistinguishable to the
// caller: both return (nil, nil).
func (s *PostgresService) VerifyCredentials(email, password string) (*User, error) {
	user, err := s.GetByEmail(email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !auth.CheckPassword(user.PwdHash, password) {
		return nil, nil
	}
	return user, nil
}

// Update applies a partial update and re-stamps updated_at
func (s *PostgresService) Update(id string, updates *UpdateUserRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argPos))
		args = append(args, *updates.Email)
		argPos++
	}
	if updates.Firstname != nil {
		setClauses = append(setClauses, fmt.Sprintf("firstname = $%d", argPos))
		args = append(args, *updates.Firstname)
		argPos++
	}
	if updates.Lastname != nil {
		setClauses = append(setClauses, fmt.Sprintf("lastname = $%d", argPos))
		args = append(args, *updates.Lastname)
		argPos++
	}
	if updates.Roles != nil {
		rolesJSON, err := json.Marshal(*updates.Roles)
		if err != nil {
			return fmt.Errorf("failed to marshal roles: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("roles = $%d", argPos))
		args = append(args, rolesJSON)
		argPos++
	}
	if updates.Accounts != nil {
		accountsJSON, err := json.Marshal(*updates.Accounts)
		if err != nil {
			return fmt.Errorf("failed to marshal accounts: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("accounts = $%d", argPos))
		args = append(args, accountsJSON)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user: %w", storage.ErrNotFound)
	}

	return nil
}

// ChangePassword rehashes and re-stamps updated_at
func (s *PostgresService) ChangePassword(id, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	query := `UPDATE users SET pwdhash = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.Exec(query, hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user: %w", storage.ErrNotFound)
	}

	return nil
}

// Delete removes a user
func (s *PostgresService) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user: %w", storage.ErrNotFound)
	}

	return nil
}

// List returns a page of users plus the total count. The sort field is
// restricted to the allow-list; direction is asc unless "desc".
func (s *PostgresService) List(skip, limit int, sortBy, sortDir string) ([]*User, int, error) {
	column, ok := sortableFields[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if strings.EqualFold(sortDir, "desc") {
		direction = "DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM users ORDER BY %s %s OFFSET $1 LIMIT $2",
		userColumns, column, direction)
	rows, err := s.db.Query(query, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := s.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	return users, total, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresService) scanUser(row rowScanner) (*User, error) {
	user := &User{}
	var rolesJSON, accountsJSON []byte
	err := row.Scan(
		&user.ID, &user.Email, &user.PwdHash, &user.Firstname, &user.Lastname,
		&rolesJSON, &accountsJSON, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if err := json.Unmarshal(rolesJSON, &user.Roles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roles: %w", err)
	}
	if err := json.Unmarshal(accountsJSON, &user.Accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
	}

	return user, nil
}
