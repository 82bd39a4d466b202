package sessions

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testboss/testboss/pkg/storage"
)

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresService(db, 30*time.Minute), mock, db
}

func TestCreate(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := service.Create("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, 30*time.Minute, session.ExpiresAt.Sub(session.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1")).
			WithArgs("sess-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at", "expires_at"}).
				AddRow("sess-1", "user-1", now, now.Add(time.Hour)))

		session, err := service.GetByID("sess-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", session.UserID)
		assert.False(t, session.Expired())
	})

	t.Run("not found", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM sessions")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := service.GetByID("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestSessionExpired(t *testing.T) {
	past := &Session{ExpiresAt: time.Now().Add(-time.Second)}
	future := &Session{ExpiresAt: time.Now().Add(time.Hour)}

	assert.True(t, past.Expired())
	assert.False(t, future.Expired())
}

func TestRenew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET expires_at = $1 WHERE id = $2")).
			WithArgs(sqlmock.AnyArg(), "sess-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.Renew("sess-1"))
	})

	t.Run("absent session", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, service.Renew("missing"), storage.ErrNotFound)
	})
}

func TestRevokeIsIdempotent(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, service.Revoke("missing"))
}

func TestDeleteExpired(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at < $1")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := service.DeleteExpired()
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)
}
