package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

func TestUpsertOverride(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollment_class_overrides").
		WithArgs(sqlmock.AnyArg(), "enr-1", "class-1", models.OverrideUnlocked, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertOverride(context.Background(), "enr-1", "class-1", models.OverrideUnlocked)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOverrideMissingIsNil(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT id, enrollment_id, class_id, state").
		WithArgs("enr-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrollment_id", "class_id", "state", "created_at", "updated_at"}))

	override, err := repo.FindOverride(context.Background(), "enr-1", "class-1")
	require.NoError(t, err)
	assert.Nil(t, override)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByCourseActiveOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "status"}).
		AddRow("enr-1", "student-1", "course-1", models.EnrollmentStatusActive).
		AddRow("enr-2", "student-2", "course-1", models.EnrollmentStatusActive)
	mock.ExpectQuery("FROM enrollments WHERE course_id").
		WithArgs("course-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollments, err := repo.ListByCourse(context.Background(), "course-1", true)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, "student-1", enrollments[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockByStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	blockedBy := "admin-1"
	now := time.Now().UTC()
	mock.ExpectExec("UPDATE enrollments SET access_blocked = TRUE").
		WithArgs("course-1", pq.Array([]string{"student-1", "student-2"}), "overdue fee payment", &blockedBy, now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.BlockByStudents(context.Background(), "course-1", []string{"student-1", "student-2"}, "overdue fee payment", &blockedBy, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockByStudentsEmptyListSkipsQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	affected, err := repo.BlockByStudents(context.Background(), "course-1", nil, "overdue fee payment", nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCertificateKeepsCompletionTime(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	issuedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE enrollments SET certificate_issued = TRUE").
		WithArgs("enr-1", "cert-1", models.EnrollmentStatusCompleted, issuedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetCertificate(context.Background(), "enr-1", "cert-1", issuedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
