package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

func TestHasOverduePending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	now := time.Now().UTC()
	query := regexp.QuoteMeta("SELECT 1 FROM fee_records WHERE student_id = $1 AND status = $2 AND due_date < $3 LIMIT 1")

	mock.ExpectQuery(query).
		WithArgs("student-1", models.FeeStatusPending, now).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	mock.ExpectQuery(query).
		WithArgs("student-2", models.FeeStatusPending, now).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	overdue, err := repo.HasOverduePending(context.Background(), "student-1", now)
	require.NoError(t, err)
	assert.True(t, overdue)

	overdue, err = repo.HasOverduePending(context.Background(), "student-2", now)
	require.NoError(t, err)
	assert.False(t, overdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM fee_records WHERE student_id = $1 AND month = $2 AND year = $3 LIMIT 1")).
		WithArgs("student-1", 3, 2026).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "student-1", 3, 2026)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveStudentIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE role = $1 AND active = TRUE")).
		WithArgs(models.RoleStudent).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("student-1").AddRow("student-2"))

	ids, err := repo.ListActiveStudentIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1", "student-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFee(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectExec("INSERT INTO fee_records").WillReturnResult(sqlmock.NewResult(1, 1))

	fee := &models.FeeRecord{
		StudentID: "student-1",
		Month:     3,
		Year:      2026,
		Amount:    150,
		DueDate:   time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), fee)
	require.NoError(t, err)
	assert.NotEmpty(t, fee.ID)
	assert.Equal(t, models.FeeStatusPending, fee.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
