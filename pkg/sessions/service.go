// Package sessions holds session records and their lifecycle.
package sessions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/testboss/testboss/pkg/storage"
)

// Session is a stored login session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's lifetime has passed. Expiry is
// checked lazily at resolution time; expired rows may still exist.
func (s *Session) Expired() bool {
	return s.ExpiresAt.Before(time.Now())
}

// PostgresService implements the session store using PostgreSQL
type PostgresService struct {
	db       *sql.DB
	duration time.Duration
}

// NewPostgresService creates a session store with the configured
// session validity duration
func NewPostgresService(db *sql.DB, duration time.Duration) *PostgresService {
	return &PostgresService{db: db, duration: duration}
}

// Create inserts a new session expiring after the configured duration
func (s *PostgresService) Create(userID string) (*Session, error) {
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.duration),
	}

	query := `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Exec(query, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// GetByID retrieves a session by id
func (s *PostgresService) GetByID(id string) (*Session, error) {
	query := `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1`
	session := &Session{}
	err := s.db.QueryRow(query, id).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// Renew pushes expires_at forward by the configured duration from now
func (s *PostgresService) Renew(id string) error {
	query := `UPDATE sessions SET expires_at = $1 WHERE id = $2`
	result, err := s.db.Exec(query, time.Now().UTC().Add(s.duration), id)
	if err != nil {
		return fmt.Errorf("failed to renew session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session: %w", storage.ErrNotFound)
	}

	return nil
}

// Revoke deletes the session. Deleting an absent session is not an
// error; logout is idempotent.
func (s *PostgresService) Revoke(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose lifetime has passed and returns
// the number removed
func (s *PostgresService) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
