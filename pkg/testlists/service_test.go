package testlists

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

func testlistRows(ids ...string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "account_id", "project_id", "name", "description", "created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "acc-1", "proj-1", "smoke", "", now, now)
	}
	return rows
}

func TestCreate(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO testlists")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	testlist := &Testlist{AccountID: "acc-1", ProjectID: "proj-1", Name: "smoke"}
	require.NoError(t, service.Create(testlist))
	assert.NotEmpty(t, testlist.ID)
	assert.Equal(t, "acc-1", testlist.OwnerAccountID())
}

func TestGetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM testlists WHERE id = $1")).
			WithArgs("tl-1").
			WillReturnRows(testlistRows("tl-1"))

		testlist, err := service.GetByID("tl-1")
		require.NoError(t, err)
		assert.Equal(t, "proj-1", testlist.ProjectID)
	})

	t.Run("not found", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM testlists WHERE id = $1")).
			WithArgs("missing").
			WillReturnRows(testlistRows())

		_, err := service.GetByID("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE testlists SET description = $1, updated_at = $2 WHERE id = $3")).
			WithArgs("nightly run", sqlmock.AnyArg(), "tl-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		desc := "nightly run"
		assert.NoError(t, service.Update("tl-1", &UpdateTestlistRequest{Description: &desc}))
	})

	t.Run("zero rows is not found", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE testlists SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		name := "renamed"
		assert.ErrorIs(t, service.Update("missing", &UpdateTestlistRequest{Name: &name}), storage.ErrNotFound)
	})
}

func TestListByProject(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM testlists WHERE project_id = $1 ORDER BY created_at")).
		WithArgs("proj-1").
		WillReturnRows(testlistRows("tl-1", "tl-2", "tl-3"))

	testlists, err := service.ListByProject("proj-1")
	require.NoError(t, err)
	assert.Len(t, testlists, 3)
}
