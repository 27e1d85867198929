package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRepositoryLoadTeachers(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	teacherRows := sqlmock.NewRows([]string{"id", "full_name", "email", "subjects", "classes"}).
		AddRow("t-1", "Alice", "alice@school.test", "{Math}", "{10A,10B}").
		AddRow("t-2", "Bob", "", "{}", "{10A}")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, email, subjects, classes")).WillReturnRows(teacherRows)

	periodRows := sqlmock.NewRows([]string{"teacher_id", "day_of_week", "period", "class_name", "covering_for"}).
		AddRow("t-1", "Monday", "P1", "10A", "").
		AddRow("t-1", "Monday", "P3", "10B", "").
		AddRow("t-1", "Tuesday", "P2", "10A", "t-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT teacher_id, day_of_week, period, class_name, covering_for")).WillReturnRows(periodRows)

	teachers, err := repo.LoadTeachers(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 2)

	alice := teachers[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, []string{"Math"}, alice.Subjects)
	assert.Equal(t, []string{"10A", "10B"}, alice.Classes)
	require.Len(t, alice.Timetable, 2)
	assert.Equal(t, "Monday", alice.Timetable[0].Day)
	assert.Equal(t, []models.PeriodEntry{{Period: "P1", Class: "10A"}, {Period: "P3", Class: "10B"}}, alice.Timetable[0].Periods)
	assert.Equal(t, "t-2", alice.Timetable[1].Periods[0].CoveringFor)

	assert.Empty(t, teachers[1].Timetable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryLoadTeachersError(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, email, subjects, classes")).WillReturnError(assert.AnError)

	_, err := repo.LoadTeachers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTimetableRepositoryAddPeriodsWithTx(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_periods")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_periods")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	changes := []models.PeriodChange{
		{TeacherID: "t-2", Day: "Monday", Period: "P1", ClassName: "10A", CoveringFor: "t-1"},
		{TeacherID: "t-3", Day: "Monday", Period: "P3", ClassName: "10B", CoveringFor: "t-1"},
	}
	require.NoError(t, repo.AddPeriodsWithTx(context.Background(), tx, changes))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryAddPeriodsNoop(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	require.NoError(t, repo.AddPeriodsWithTx(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositorySaveTeachers(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_periods")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teachers")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers")).
		WithArgs("Alice", "Alice", "", pq.Array([]string{"Math"}), pq.Array([]string{"10A"}), 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_periods")).
		WithArgs(sqlmock.AnyArg(), "Alice", "Monday", 0, "P1", 0, "10A", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	teachers := []models.Teacher{{
		Name:      "Alice",
		Subjects:  []string{"Math"},
		Classes:   []string{"10A"},
		Timetable: models.Timetable{{Day: "Monday", Periods: []models.PeriodEntry{{Period: "P1", Class: "10A"}}}},
	}}
	require.NoError(t, repo.SaveTeachers(context.Background(), teachers))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositorySaveTeachersRollsBack(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_periods")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.SaveTeachers(context.Background(), []models.Teacher{{Name: "Alice"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
