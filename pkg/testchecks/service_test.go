package testchecks

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

func testcheckRows(ids ...string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "testlist_id", "project_id", "account_id", "name", "description",
		"expected", "tags", "position", "created_at", "updated_at",
	})
	for i, id := range ids {
		rows.AddRow(id, "tl-1", "proj-1", "acc-1", "check", "", "passes", []byte(`["smoke"]`), i, now, now)
	}
	return rows
}

func TestCreate(t *testing.T) {
	t.Run("first check gets position zero", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position) + 1, 0) FROM testchecks WHERE testlist_id = $1")).
			WithArgs("tl-1").
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO testchecks")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		check := &Testcheck{TestlistID: "tl-1", ProjectID: "proj-1", AccountID: "acc-1", Name: "check"}
		require.NoError(t, service.Create(check))
		assert.Equal(t, 0, check.Position)
		assert.NotEmpty(t, check.ID)
	})

	t.Run("appends after existing checks", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(position) + 1, 0)")).
			WithArgs("tl-1").
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(5))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO testchecks")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		check := &Testcheck{TestlistID: "tl-1", ProjectID: "proj-1", AccountID: "acc-1", Name: "check"}
		require.NoError(t, service.Create(check))
		assert.Equal(t, 5, check.Position)
	})
}

func TestGetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM testchecks WHERE id = $1")).
			WithArgs("tc-1").
			WillReturnRows(testcheckRows("tc-1"))

		check, err := service.GetByID("tc-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"smoke"}, check.Tags)
		assert.Equal(t, "acc-1", check.OwnerAccountID())
	})

	t.Run("not found", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM testchecks WHERE id = $1")).
			WithArgs("missing").
			WillReturnRows(testcheckRows())

		_, err := service.GetByID("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestReorder(t *testing.T) {
	t.Run("assigns positions in payload order", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		reorderQuery := regexp.QuoteMeta("UPDATE testchecks SET position = $1 WHERE id = $2 AND testlist_id = $3")
		mock.ExpectExec(reorderQuery).WithArgs(0, "tc-2", "tl-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(reorderQuery).WithArgs(1, "tc-1", "tl-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(reorderQuery).WithArgs(2, "tc-3", "tl-1").WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := service.Reorder("tl-1", []string{"tc-2", "tc-1", "tc-3"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// An id scoped to a different testlist matches zero rows and is
	// excluded from the count
	t.Run("foreign id is not counted", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		reorderQuery := regexp.QuoteMeta("UPDATE testchecks SET position = $1 WHERE id = $2 AND testlist_id = $3")
		mock.ExpectExec(reorderQuery).WithArgs(0, "tc-1", "tl-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(reorderQuery).WithArgs(1, "intruder", "tl-1").WillReturnResult(sqlmock.NewResult(0, 0))

		changed, err := service.Reorder("tl-1", []string{"tc-1", "intruder"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, changed)
	})
}

func TestDeleteByTestlist(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM testchecks WHERE testlist_id = $1")).
		WithArgs("tl-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := service.DeleteByTestlist("tl-1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, deleted)
}

func TestListByTestlist(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM testchecks WHERE testlist_id = $1 ORDER BY position")).
		WithArgs("tl-1").
		WillReturnRows(testcheckRows("tc-1", "tc-2"))

	checks, err := service.ListByTestlist("tl-1")
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, 0, checks[0].Position)
	assert.Equal(t, 1, checks[1].Position)
}
