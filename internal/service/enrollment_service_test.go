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

type mockEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	overrides   map[string]models.OverrideState
	exists      bool
	created     *models.Enrollment
	updated     *models.Enrollment
	deleted     []string
}

func overrideKey(enrollmentID, classID string) string { return enrollmentID + "/" + classID }

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if enrollment, ok := m.enrollments[id]; ok {
		copy := *enrollment
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	for _, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID && enrollment.CourseID == courseID {
			copy := *enrollment
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.exists, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-new"
	copy := *enrollment
	m.created = &copy
	if m.enrollments == nil {
		m.enrollments = make(map[string]*models.Enrollment)
	}
	m.enrollments[enrollment.ID] = &copy
	return nil
}

func (m *mockEnrollmentRepo) UpdateProgressSummary(ctx context.Context, enrollment *models.Enrollment) error {
	copy := *enrollment
	m.updated = &copy
	m.enrollments[enrollment.ID] = &copy
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.enrollments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEnrollmentRepo) FindOverride(ctx context.Context, enrollmentID, classID string) (*models.ClassOverride, error) {
	if state, ok := m.overrides[overrideKey(enrollmentID, classID)]; ok {
		return &models.ClassOverride{EnrollmentID: enrollmentID, ClassID: classID, State: state}, nil
	}
	return nil, nil
}

func (m *mockEnrollmentRepo) UpsertOverride(ctx context.Context, enrollmentID, classID string, state models.OverrideState) error {
	if m.overrides == nil {
		m.overrides = make(map[string]models.OverrideState)
	}
	m.overrides[overrideKey(enrollmentID, classID)] = state
	return nil
}

func (m *mockEnrollmentRepo) ListOverrides(ctx context.Context, enrollmentID string) ([]models.ClassOverride, error) {
	var overrides []models.ClassOverride
	for key, state := range m.overrides {
		overrides = append(overrides, models.ClassOverride{
			EnrollmentID: enrollmentID,
			ClassID:      key[len(enrollmentID)+1:],
			State:        state,
		})
	}
	return overrides, nil
}

type mockStudentReader struct {
	users map[string]*models.User
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		copy := *course
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type mockProgressCounter struct {
	completed int
}

func (m *mockProgressCounter) CountCompleted(ctx context.Context, studentID, courseID string) (int, error) {
	return m.completed, nil
}

type mockClassCounter struct {
	total   int
	classes map[string]*models.ClassRecord
}

func (m *mockClassCounter) CountPublishedByCourse(ctx context.Context, courseID string) (int, error) {
	return m.total, nil
}

func (m *mockClassCounter) FindByID(ctx context.Context, id string) (*models.ClassRecord, error) {
	if class, ok := m.classes[id]; ok {
		copy := *class
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentNotifier struct {
	completed []string
}

func (m *mockEnrollmentNotifier) NotifyCourseCompleted(enrollment *models.Enrollment) {
	m.completed = append(m.completed, enrollment.ID)
}

func newEnrollmentFixture() (*mockEnrollmentRepo, *mockProgressCounter, *mockClassCounter, *mockEnrollmentNotifier, *EnrollmentService) {
	repo := &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive},
	}}
	students := &mockStudentReader{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Active: true},
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, Active: true},
	}}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Algebra", IsPublished: true},
	}}
	progress := &mockProgressCounter{}
	classes := &mockClassCounter{total: 4, classes: map[string]*models.ClassRecord{
		"class-1": {ID: "class-1", CourseID: "course-1"},
		"class-2": {ID: "class-2", CourseID: "course-1"},
		"other":   {ID: "other", CourseID: "course-2"},
	}}
	notifier := &mockEnrollmentNotifier{}
	svc := NewEnrollmentService(repo, students, courses, progress, classes, notifier, validator.New(), zap.NewNop())
	return repo, progress, classes, notifier, svc
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-1", CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, 4, enrollment.TotalClasses)
	assert.NotNil(t, repo.created)
}

func TestEnrollmentServiceEnrollDuplicateConflict(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.exists = true

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-1", CourseID: "course-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsNonStudent(t *testing.T) {
	_, _, _, _, svc := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "teacher-1", CourseID: "course-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRecomputePartialProgress(t *testing.T) {
	repo, progress, classes, notifier, svc := newEnrollmentFixture()
	progress.completed = 2
	classes.total = 3

	enrollment, err := svc.RecomputeOnCompletion(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, enrollment.CompletedClasses)
	assert.Equal(t, 3, enrollment.TotalClasses)
	assert.Equal(t, 67, enrollment.Percentage)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Nil(t, enrollment.CompletedAt)
	assert.NotNil(t, repo.updated)
	assert.Empty(t, notifier.completed)
}

func TestEnrollmentServiceRecomputeCompletesCourse(t *testing.T) {
	_, progress, classes, notifier, svc := newEnrollmentFixture()
	progress.completed = 3
	classes.total = 3

	enrollment, err := svc.RecomputeOnCompletion(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 100, enrollment.Percentage)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	require.NotNil(t, enrollment.CompletedAt)
	assert.Equal(t, []string{"enr-1"}, notifier.completed)
}

func TestEnrollmentServiceRecomputeCompletionIsIdempotent(t *testing.T) {
	_, progress, classes, notifier, svc := newEnrollmentFixture()
	progress.completed = 3
	classes.total = 3

	first, err := svc.RecomputeOnCompletion(context.Background(), "enr-1")
	require.NoError(t, err)
	completedAt := *first.CompletedAt

	time.Sleep(time.Millisecond)
	second, err := svc.RecomputeOnCompletion(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, second.CompletedAt)
	assert.Equal(t, completedAt, *second.CompletedAt)
	assert.Len(t, notifier.completed, 1)
}

func TestEnrollmentServiceRecomputeEmptyCourseNeverCompletes(t *testing.T) {
	_, progress, classes, _, svc := newEnrollmentFixture()
	progress.completed = 0
	classes.total = 0

	enrollment, err := svc.RecomputeOnCompletion(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, enrollment.Percentage)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
}

func TestEnrollmentServiceToggleClassLockReplacesState(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()

	sets, err := svc.ToggleClassLock(context.Background(), "enr-1", "class-1", ToggleClassLockRequest{Action: "lock"})
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1"}, sets.LockedClasses)
	assert.Empty(t, sets.UnlockedClasses)

	sets, err = svc.ToggleClassLock(context.Background(), "enr-1", "class-1", ToggleClassLockRequest{Action: "unlock"})
	require.NoError(t, err)
	assert.Empty(t, sets.LockedClasses)
	assert.Equal(t, []string{"class-1"}, sets.UnlockedClasses)

	assert.Len(t, repo.overrides, 1)
}

func TestEnrollmentServiceBulkClassAccess(t *testing.T) {
	_, _, _, _, svc := newEnrollmentFixture()

	sets, err := svc.BulkClassAccess(context.Background(), "enr-1", BulkClassAccessRequest{ClassIDs: []string{"class-1", "class-2"}, Action: "lock"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"class-1", "class-2"}, sets.LockedClasses)
}

func TestEnrollmentServiceBulkClassAccessRejectsForeignClass(t *testing.T) {
	_, _, _, _, svc := newEnrollmentFixture()

	_, err := svc.BulkClassAccess(context.Background(), "enr-1", BulkClassAccessRequest{ClassIDs: []string{"other"}, Action: "unlock"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
