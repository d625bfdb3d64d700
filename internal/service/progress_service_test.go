package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sat-lms-api/internal/models"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
)

type mockProgressRepo struct {
	records      map[string]*models.ProgressRecord
	accessCalls  int
	updateCalls  int
	updatedWith  *models.ProgressRecord
	listRecords  []models.ProgressRecord
	findErr      error
	recordAccess *models.ProgressRecord
}

func progressKey(studentID, classID string) string { return studentID + "/" + classID }

func (m *mockProgressRepo) FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.ProgressRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if record, ok := m.records[progressKey(studentID, classID)]; ok {
		copy := *record
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProgressRepo) RecordAccess(ctx context.Context, studentID, classID, courseID string, at time.Time) (*models.ProgressRecord, error) {
	m.accessCalls++
	if record, ok := m.records[progressKey(studentID, classID)]; ok {
		record.AccessCount++
		copy := *record
		return &copy, nil
	}
	record := &models.ProgressRecord{
		ID:          "p-" + classID,
		StudentID:   studentID,
		ClassID:     classID,
		CourseID:    courseID,
		Status:      models.ProgressStatusInProgress,
		AccessCount: 1,
	}
	if m.records == nil {
		m.records = make(map[string]*models.ProgressRecord)
	}
	m.records[progressKey(studentID, classID)] = record
	copy := *record
	return &copy, nil
}

func (m *mockProgressRepo) Update(ctx context.Context, record *models.ProgressRecord) error {
	m.updateCalls++
	copy := *record
	m.updatedWith = &copy
	if m.records == nil {
		m.records = make(map[string]*models.ProgressRecord)
	}
	m.records[progressKey(record.StudentID, record.ClassID)] = &copy
	return nil
}

func (m *mockProgressRepo) ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.ProgressRecord, error) {
	return m.listRecords, nil
}

type mockClassReader struct {
	classes map[string]*models.ClassRecord
	prev    *models.ClassSibling
	next    *models.ClassSibling
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.ClassRecord, error) {
	if class, ok := m.classes[id]; ok {
		copy := *class
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassReader) Siblings(ctx context.Context, class *models.ClassRecord) (*models.ClassSibling, *models.ClassSibling, error) {
	return m.prev, m.next, nil
}

type mockEnrollmentAccess struct {
	enrollment  *models.Enrollment
	override    *models.ClassOverride
	touchCalls  int
	touchedWith string
}

func (m *mockEnrollmentAccess) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	copy := *m.enrollment
	return &copy, nil
}

func (m *mockEnrollmentAccess) FindOverride(ctx context.Context, enrollmentID, classID string) (*models.ClassOverride, error) {
	return m.override, nil
}

func (m *mockEnrollmentAccess) TouchLastAccess(ctx context.Context, id, classID string, at time.Time) error {
	m.touchCalls++
	m.touchedWith = classID
	return nil
}

type mockCompletion struct {
	calls []string
}

func (m *mockCompletion) RecomputeOnCompletion(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	m.calls = append(m.calls, enrollmentID)
	return &models.Enrollment{ID: enrollmentID}, nil
}

func newProgressFixture() (*mockProgressRepo, *mockClassReader, *mockEnrollmentAccess, *mockCompletion, *ProgressService) {
	progress := &mockProgressRepo{}
	classes := &mockClassReader{classes: map[string]*models.ClassRecord{
		"class-1": {ID: "class-1", CourseID: "course-1", IsPublished: true},
	}}
	enrollments := &mockEnrollmentAccess{enrollment: &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive}}
	completion := &mockCompletion{}
	svc := NewProgressService(progress, classes, enrollments, completion, 90, validator.New(), zap.NewNop())
	return progress, classes, enrollments, completion, svc
}

func TestProgressServiceWatchAllowed(t *testing.T) {
	progress, _, enrollments, _, svc := newProgressFixture()

	result, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "class-1", result.Class.ID)
	assert.Equal(t, 1, result.Progress.AccessCount)
	assert.Equal(t, 1, progress.accessCalls)
	assert.Equal(t, 1, enrollments.touchCalls)
	assert.Equal(t, "class-1", enrollments.touchedWith)
}

func TestProgressServiceWatchRepeatedAccessSingleRecord(t *testing.T) {
	progress, _, _, _, svc := newProgressFixture()

	_, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
	result, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Progress.AccessCount)
	assert.Len(t, progress.records, 1)
}

func TestProgressServiceWatchLockedClass(t *testing.T) {
	_, classes, _, _, svc := newProgressFixture()
	classes.classes["class-1"].IsLocked = true

	_, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrClassLocked.Code, appErrors.FromError(err).Code)
}

func TestProgressServiceWatchUnlockOverrideOpensLockedClass(t *testing.T) {
	_, classes, enrollments, _, svc := newProgressFixture()
	classes.classes["class-1"].IsLocked = true
	enrollments.override = &models.ClassOverride{EnrollmentID: "enr-1", ClassID: "class-1", State: models.OverrideUnlocked}

	_, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
}

func TestProgressServiceWatchLockOverrideBeatsPreview(t *testing.T) {
	_, classes, enrollments, _, svc := newProgressFixture()
	classes.classes["class-1"].IsPreview = true
	enrollments.override = &models.ClassOverride{EnrollmentID: "enr-1", ClassID: "class-1", State: models.OverrideLocked}

	_, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrClassLocked.Code, appErrors.FromError(err).Code)
}

func TestProgressServiceWatchBlockedEnrollmentDeniesPreview(t *testing.T) {
	_, classes, enrollments, _, svc := newProgressFixture()
	classes.classes["class-1"].IsPreview = true
	reason := "overdue fees"
	enrollments.enrollment.AccessBlocked = true
	enrollments.enrollment.BlockedReason = &reason

	_, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccessBlocked.Code, appErrors.FromError(err).Code)
}

func TestProgressServiceWatchNotEnrolled(t *testing.T) {
	_, _, enrollments, _, svc := newProgressFixture()
	enrollments.enrollment = nil

	_, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestProgressServiceWatchUnpublishedClassNotFound(t *testing.T) {
	_, classes, _, _, svc := newProgressFixture()
	classes.classes["class-1"].IsPublished = false

	_, err := svc.Watch(context.Background(), "student-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProgressServiceUpdateProgressBelowThreshold(t *testing.T) {
	_, _, _, completion, svc := newProgressFixture()

	progress := 50.0
	result, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &progress})
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Equal(t, models.ProgressStatusInProgress, result.Record.Status)
	assert.Empty(t, completion.calls)
}

func TestProgressServiceUpdateProgressCrossesThreshold(t *testing.T) {
	_, _, _, completion, svc := newProgressFixture()

	progress := 92.5
	result, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &progress})
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, models.ProgressStatusCompleted, result.Record.Status)
	require.NotNil(t, result.Record.CompletedAt)
	assert.Equal(t, []string{"enr-1"}, completion.calls)
}

func TestProgressServiceUpdateProgressCompletionIsMonotonic(t *testing.T) {
	_, _, _, completion, svc := newProgressFixture()

	high := 95.0
	first, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &high})
	require.NoError(t, err)
	require.True(t, first.Completed)
	completedAt := *first.Record.CompletedAt

	low := 10.0
	second, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &low})
	require.NoError(t, err)
	assert.False(t, second.Completed)
	assert.Equal(t, models.ProgressStatusCompleted, second.Record.Status)
	require.NotNil(t, second.Record.CompletedAt)
	assert.Equal(t, completedAt, *second.Record.CompletedAt)
	assert.Len(t, completion.calls, 1)
}

func TestProgressServiceUpdateProgressBlockedEnrollmentDenied(t *testing.T) {
	progress, _, enrollments, completion, svc := newProgressFixture()
	reason := "overdue fees"
	enrollments.enrollment.AccessBlocked = true
	enrollments.enrollment.BlockedReason = &reason

	high := 95.0
	_, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &high})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccessBlocked.Code, appErrors.FromError(err).Code)
	assert.Zero(t, progress.updateCalls)
	assert.Empty(t, completion.calls)
}

func TestProgressServiceUpdateProgressRequiresEnrollment(t *testing.T) {
	progress, _, enrollments, _, svc := newProgressFixture()
	enrollments.enrollment = nil

	high := 95.0
	_, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &high})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
	assert.Empty(t, progress.records)
	assert.Zero(t, progress.accessCalls)
}

func TestProgressServiceUpdateProgressClampsRange(t *testing.T) {
	_, _, _, _, svc := newProgressFixture()

	over := 140.0
	result, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &over})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Record.WatchProgress)

	under := -3.0
	result, err = svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &under})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Record.WatchProgress)
}

func TestProgressServiceUpdateProgressExactThreshold(t *testing.T) {
	_, _, _, _, svc := newProgressFixture()

	exact := 90.0
	result, err := svc.UpdateProgress(context.Background(), "student-1", "class-1", UpdateProgressRequest{WatchProgress: &exact})
	require.NoError(t, err)
	assert.True(t, result.Completed)
}
