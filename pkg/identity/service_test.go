package identity

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testboss/testboss/pkg/auth"
	"github.com/testboss/testboss/pkg/storage"
)

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresService(db), mock, db
}

func userRows(user *User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "pwdhash", "firstname", "lastname", "roles", "accounts", "created_at", "updated_at",
	}).AddRow(
		user.ID, user.Email, user.PwdHash, user.Firstname, user.Lastname,
		[]byte(`["admin"]`), []byte(`[{"account_id":"acc-1","is_manager":false}]`),
		user.CreatedAt, user.UpdatedAt,
	)
}

func TestCreate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		user := &User{Email: "a@b.com", Firstname: "Ada"}
		err := service.Create(user, "Sup3rSecret!")
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, user.CreatedAt, user.UpdatedAt)
		assert.True(t, auth.CheckPassword(user.PwdHash, "Sup3rSecret!"))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(sql.ErrConnDone)

		err := service.Create(&User{Email: "a@b.com"}, "Sup3rSecret!")
		assert.ErrorContains(t, err, "failed to create user")
	})
}

func TestGetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		now := time.Now().UTC()
		seeded := &User{ID: "user-1", Email: "a@b.com", PwdHash: "hash", CreatedAt: now, UpdatedAt: now}
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, pwdhash, firstname, lastname, roles, accounts, created_at, updated_at FROM users WHERE id = $1")).
			WithArgs("user-1").
			WillReturnRows(userRows(seeded))

		user, err := service.GetByID("user-1")
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", user.Email)
		assert.Equal(t, []string{"admin"}, user.Roles)
		assert.Equal(t, []Membership{{AccountID: "acc-1"}}, user.Accounts)
	})

	t.Run("not found", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := service.GetByID("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestVerifyCredentials(t *testing.T) {
	hash, err := auth.HashPassword("correct")
	require.NoError(t, err)

	now := time.Now().UTC()
	seeded := &User{ID: "user-1", Email: "a@b.com", PwdHash: hash, CreatedAt: now, UpdatedAt: now}

	t.Run("matching password", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("a@b.com").
			WillReturnRows(userRows(seeded))

		user, err := service.VerifyCredentials("a@b.com", "correct")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "user-1", user.ID)
	})

	// Unknown email and wrong password must be indistinguishable
	t.Run("unknown email", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("nobody@b.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		user, err := service.VerifyCredentials("nobody@b.com", "correct")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("wrong password", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("a@b.com").
			WillReturnRows(userRows(seeded))

		user, err := service.VerifyCredentials("a@b.com", "wrong")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET firstname = $1, updated_at = $2 WHERE id = $3")).
			WithArgs("Grace", sqlmock.AnyArg(), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		firstname := "Grace"
		err := service.Update("user-1", &UpdateUserRequest{Firstname: &firstname})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows is not found", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		firstname := "Grace"
		err := service.Update("missing", &UpdateUserRequest{Firstname: &firstname})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("no fields is a no-op", func(t *testing.T) {
		service, _, db := newMockService(t)
		defer db.Close()

		assert.NoError(t, service.Update("user-1", &UpdateUserRequest{}))
	})
}

func TestList(t *testing.T) {
	t.Run("sort field outside allow-list falls back", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		now := time.Now().UTC()
		seeded := &User{ID: "user-1", Email: "a@b.com", PwdHash: "hash", CreatedAt: now, UpdatedAt: now}
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC OFFSET $1 LIMIT $2")).
			WithArgs(0, 20).
			WillReturnRows(userRows(seeded))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		users, total, err := service.List(0, 20, "pwdhash; DROP TABLE users", "asc")
		require.NoError(t, err)
		assert.Len(t, users, 1)
		assert.Equal(t, 1, total)
	})

	t.Run("descending email sort", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY email DESC OFFSET $1 LIMIT $2")).
			WithArgs(10, 5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		users, total, err := service.List(10, 5, "email", "desc")
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.Equal(t, 42, total)
	})
}
