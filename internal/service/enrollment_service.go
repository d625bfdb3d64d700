package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sat-lms-api/internal/models"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateProgressSummary(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	FindOverride(ctx context.Context, enrollmentID, classID string) (*models.ClassOverride, error)
	UpsertOverride(ctx context.Context, enrollmentID, classID string, state models.OverrideState) error
	ListOverrides(ctx context.Context, enrollmentID string) ([]models.ClassOverride, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentNotifier interface {
	NotifyCourseCompleted(enrollment *models.Enrollment)
}

type progressCounter interface {
	CountCompleted(ctx context.Context, studentID, courseID string) (int, error)
}

type publishedClassCounter interface {
	CountPublishedByCourse(ctx context.Context, courseID string) (int, error)
	FindByID(ctx context.Context, id string) (*models.ClassRecord, error)
}

// EnrollStudentRequest describes enrollment creation request.
type EnrollStudentRequest struct {
	StudentID string                `json:"student_id" validate:"required"`
	CourseID  string                `json:"course_id" validate:"required"`
	Type      models.EnrollmentType `json:"enrollment_type" validate:"omitempty,oneof=MANUAL PAID SCHOLARSHIP"`
}

// ToggleClassLockRequest mutates a per-student class override.
type ToggleClassLockRequest struct {
	Action string `json:"action" validate:"required,oneof=lock unlock"`
}

// BulkClassAccessRequest mutates overrides for several classes at once.
type BulkClassAccessRequest struct {
	ClassIDs []string `json:"class_ids" validate:"required,min=1,dive,required"`
	Action   string   `json:"action" validate:"required,oneof=lock unlock"`
}

// EnrollmentService orchestrates enrollment workflows: creation, the
// progress aggregation that drives course completion, and per-class access
// overrides.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	courses   courseReader
	progress  progressCounter
	classes   publishedClassCounter
	notifier  enrollmentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, courses courseReader, progress progressCounter, classes publishedClassCounter, notifier enrollmentNotifier, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, progress: progress, classes: classes, notifier: notifier, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student into a course. The (student, course) pair is
// unique; re-enrolling is a conflict.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.repo.Exists(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
	}

	totalClasses, err := s.classes.CountPublishedByCourse(ctx, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course classes")
	}

	enrollment := &models.Enrollment{
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		Status:       models.EnrollmentStatusActive,
		Type:         req.Type,
		TotalClasses: totalClasses,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// RecomputeOnCompletion refreshes the enrollment's progress summary from
// source counts. It is invoked whenever a class newly completes, and is safe
// to repeat: an enrollment that is already COMPLETED keeps its original
// completed_at.
func (s *EnrollmentService) RecomputeOnCompletion(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	completed, err := s.progress.CountCompleted(ctx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed classes")
	}
	// Published-class count can drift as the course is edited; always
	// recount instead of trusting the stored total.
	total, err := s.classes.CountPublishedByCourse(ctx, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course classes")
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}
	if percentage > 100 {
		percentage = 100
	}

	enrollment.CompletedClasses = completed
	enrollment.TotalClasses = total
	enrollment.Percentage = percentage

	newlyCompleted := false
	if percentage >= 100 && total > 0 {
		enrollment.Status = models.EnrollmentStatusCompleted
		if enrollment.CompletedAt == nil {
			now := time.Now().UTC()
			enrollment.CompletedAt = &now
			newlyCompleted = true
		}
	}

	if err := s.repo.UpdateProgressSummary(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store enrollment progress")
	}
	if newlyCompleted && s.notifier != nil {
		s.notifier.NotifyCourseCompleted(enrollment)
	}
	return enrollment, nil
}

// ToggleClassLock writes a per-student override for one class. The single
// override row per (enrollment, class) replaces any previous state, so a
// class can never be in both the locked and unlocked set.
func (s *EnrollmentService) ToggleClassLock(ctx context.Context, enrollmentID, classID string, req ToggleClassLockRequest) (*models.OverrideSets, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid toggle payload")
	}
	return s.applyOverrides(ctx, enrollmentID, []string{classID}, req.Action)
}

// BulkClassAccess applies the same override action to several classes.
func (s *EnrollmentService) BulkClassAccess(ctx context.Context, enrollmentID string, req BulkClassAccessRequest) (*models.OverrideSets, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk access payload")
	}
	return s.applyOverrides(ctx, enrollmentID, req.ClassIDs, req.Action)
}

func (s *EnrollmentService) applyOverrides(ctx context.Context, enrollmentID string, classIDs []string, action string) (*models.OverrideSets, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	state := models.OverrideUnlocked
	if action == "lock" {
		state = models.OverrideLocked
	}

	for _, classID := range classIDs {
		class, err := s.classes.FindByID(ctx, classID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		if class.CourseID != enrollment.CourseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class does not belong to the enrolled course")
		}
		if err := s.repo.UpsertOverride(ctx, enrollmentID, classID, state); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store class override")
		}
	}

	return s.overrideSets(ctx, enrollmentID)
}

func (s *EnrollmentService) overrideSets(ctx context.Context, enrollmentID string) (*models.OverrideSets, error) {
	overrides, err := s.repo.ListOverrides(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class overrides")
	}
	sets := &models.OverrideSets{LockedClasses: []string{}, UnlockedClasses: []string{}}
	for _, o := range overrides {
		switch o.State {
		case models.OverrideLocked:
			sets.LockedClasses = append(sets.LockedClasses, o.ClassID)
		case models.OverrideUnlocked:
			sets.UnlockedClasses = append(sets.UnlockedClasses, o.ClassID)
		}
	}
	return sets, nil
}

// Remove deletes an enrollment and cascades deletion of its progress
// records.
func (s *EnrollmentService) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}
