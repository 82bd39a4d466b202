package projects

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
	return NewPostgresService(db), mock, db
}

func projectRows(ids ...string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "account_id", "name", "version", "description", "repository_url", "created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "acc-1", "proj", "1.0", "", "", now, now)
	}
	return rows
}

func TestCreate(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	project := &Project{AccountID: "acc-1", Name: "proj"}
	require.NoError(t, service.Create(project))
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "acc-1", project.OwnerAccountID())
}

func TestGetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
			WithArgs("proj-1").
			WillReturnRows(projectRows("proj-1"))

		project, err := service.GetByID("proj-1")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", project.AccountID)
	})

	t.Run("not found", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
			WithArgs("missing").
			WillReturnRows(projectRows())

		_, err := service.GetByID("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects SET name = $1, version = $2, updated_at = $3 WHERE id = $4")).
		WithArgs("renamed", "2.0", sqlmock.AnyArg(), "proj-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	name, version := "renamed", "2.0"
	err := service.Update("proj-1", &UpdateProjectRequest{Name: &name, Version: &version})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, service.Delete("missing"), storage.ErrNotFound)
}

func TestListByAccount(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE account_id = $1 ORDER BY created_at")).
		WithArgs("acc-1").
		WillReturnRows(projectRows("proj-1", "proj-2"))

	projects, err := service.ListByAccount("acc-1")
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}
