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

func progressRows(accessCount int, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "class_id", "course_id", "status", "watch_progress",
		"last_position", "total_watch_time", "access_count", "started_at", "completed_at", "created_at", "updated_at"}).
		AddRow("prog-1", "student-1", "class-1", "course-1", string(models.ProgressStatusInProgress), 0.0,
			0, 0, accessCount, now, nil, now, now)
}

func TestRecordAccessUpserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO progress_records").
		WithArgs(sqlmock.AnyArg(), "student-1", "class-1", "course-1", models.ProgressStatusInProgress, now).
		WillReturnRows(progressRows(2, now))

	record, err := repo.RecordAccess(context.Background(), "student-1", "class-1", "course-1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, record.AccessCount)
	assert.Equal(t, models.ProgressStatusInProgress, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountCompleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM progress_records WHERE student_id = $1 AND course_id = $2 AND status = $3")).
		WithArgs("student-1", "course-1", models.ProgressStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountCompleted(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgressRecord(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectExec("UPDATE progress_records SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	record := &models.ProgressRecord{
		ID:            "prog-1",
		StudentID:     "student-1",
		ClassID:       "class-1",
		CourseID:      "course-1",
		Status:        models.ProgressStatusCompleted,
		WatchProgress: 95,
		CompletedAt:   &now,
	}
	err := repo.Update(context.Background(), record)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
