package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sat-lms-api/internal/models"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
)

type progressRepository interface {
	FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.ProgressRecord, error)
	RecordAccess(ctx context.Context, studentID, classID, courseID string, at time.Time) (*models.ProgressRecord, error)
	Update(ctx context.Context, record *models.ProgressRecord) error
	ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.ProgressRecord, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassRecord, error)
	Siblings(ctx context.Context, class *models.ClassRecord) (prev, next *models.ClassSibling, err error)
}

type enrollmentAccessRepository interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	FindOverride(ctx context.Context, enrollmentID, classID string) (*models.ClassOverride, error)
	TouchLastAccess(ctx context.Context, id, classID string, at time.Time) error
}

type completionNotifier interface {
	RecomputeOnCompletion(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
}

// UpdateProgressRequest carries a partial watch-state update. Nil fields are
// left unchanged.
type UpdateProgressRequest struct {
	WatchProgress  *float64 `json:"watch_progress" validate:"omitempty"`
	LastPosition   *int     `json:"last_position" validate:"omitempty,min=0"`
	TotalWatchTime *int     `json:"total_watch_time" validate:"omitempty,min=0"`
}

// WatchResponse is the payload returned by the watch endpoint.
type WatchResponse struct {
	Class    *models.ClassRecord    `json:"class"`
	Progress *models.ProgressRecord `json:"progress"`
	Previous *models.ClassSibling   `json:"previous,omitempty"`
	Next     *models.ClassSibling   `json:"next,omitempty"`
}

// ProgressResult reports the updated record and whether this update crossed
// the completion threshold.
type ProgressResult struct {
	Record    *models.ProgressRecord `json:"data"`
	Completed bool                   `json:"completed"`
}

// ProgressService owns per-class watch state and the class playback gate.
type ProgressService struct {
	progress    progressRepository
	classes     classReader
	enrollments enrollmentAccessRepository
	completion  completionNotifier
	threshold   float64
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewProgressService constructs ProgressService. Threshold is the watch
// percentage at which a class counts as completed.
func NewProgressService(progress progressRepository, classes classReader, enrollments enrollmentAccessRepository, completion completionNotifier, threshold float64, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if threshold <= 0 || threshold > 100 {
		threshold = 90
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{progress: progress, classes: classes, enrollments: enrollments, completion: completion, threshold: threshold, validator: validate, logger: logger}
}

// Watch gates playback of a class for a student. The access-block check runs
// before lock resolution: a blocked enrollment denies every class including
// previews.
func (s *ProgressService) Watch(ctx context.Context, studentID, classID string) (*WatchResponse, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !class.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, studentID, class.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.AccessBlocked {
		if enrollment.BlockedReason != nil && *enrollment.BlockedReason != "" {
			return nil, appErrors.Clone(appErrors.ErrAccessBlocked, *enrollment.BlockedReason)
		}
		return nil, appErrors.ErrAccessBlocked
	}

	override, err := s.enrollments.FindOverride(ctx, enrollment.ID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class override")
	}
	if decision := ResolveClassAccess(class, override); decision.Locked {
		return nil, appErrors.ErrClassLocked
	}

	record, err := s.RecordAccess(ctx, studentID, class)
	if err != nil {
		return nil, err
	}
	if err := s.enrollments.TouchLastAccess(ctx, enrollment.ID, classID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last accessed class", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}

	prev, next, err := s.classes.Siblings(ctx, class)
	if err != nil {
		s.logger.Warn("failed to load sibling classes", zap.String("class_id", classID), zap.Error(err))
	}

	return &WatchResponse{Class: class, Progress: record, Previous: prev, Next: next}, nil
}

// RecordAccess upserts the progress record for an access event. Repeated
// calls never create duplicate rows.
func (s *ProgressService) RecordAccess(ctx context.Context, studentID string, class *models.ClassRecord) (*models.ProgressRecord, error) {
	record, err := s.progress.RecordAccess(ctx, studentID, class.ID, class.CourseID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record class access")
	}
	return record, nil
}

// UpdateProgress applies a partial watch-state update. The same enrollment
// and access-block gate as Watch runs first: a blocked or unenrolled student
// cannot push progress. Watch progress is clamped to [0,100]; crossing the
// completion threshold transitions the record to COMPLETED exactly once and
// triggers enrollment recomputation. Completion is monotonic: later updates
// never revert it.
func (s *ProgressService) UpdateProgress(ctx context.Context, studentID, classID string, req UpdateProgressRequest) (*ProgressResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, studentID, class.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.AccessBlocked {
		if enrollment.BlockedReason != nil && *enrollment.BlockedReason != "" {
			return nil, appErrors.Clone(appErrors.ErrAccessBlocked, *enrollment.BlockedReason)
		}
		return nil, appErrors.ErrAccessBlocked
	}

	record, err := s.progress.FindByStudentAndClass(ctx, studentID, classID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress record")
		}
		record, err = s.RecordAccess(ctx, studentID, class)
		if err != nil {
			return nil, err
		}
	}

	if req.WatchProgress != nil {
		record.WatchProgress = clampProgress(*req.WatchProgress)
	}
	if req.LastPosition != nil {
		record.LastPosition = *req.LastPosition
	}
	if req.TotalWatchTime != nil {
		record.TotalWatchTime = *req.TotalWatchTime
	}

	newlyCompleted := false
	if record.Status != models.ProgressStatusCompleted && record.WatchProgress >= s.threshold {
		now := time.Now().UTC()
		record.Status = models.ProgressStatusCompleted
		record.CompletedAt = &now
		newlyCompleted = true
	}

	if err := s.progress.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress record")
	}

	if newlyCompleted && s.completion != nil {
		if _, err := s.completion.RecomputeOnCompletion(ctx, enrollment.ID); err != nil {
			// The progress write already landed; recomputation will be
			// repeated on the next completion event.
			s.logger.Error("failed to recompute enrollment progress", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
	}

	return &ProgressResult{Record: record, Completed: newlyCompleted}, nil
}

// CourseOverview lists the student's progress records for one course.
func (s *ProgressService) CourseOverview(ctx context.Context, studentID, courseID string) ([]models.ProgressRecord, error) {
	records, err := s.progress.ListByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress records")
	}
	return records, nil
}

func clampProgress(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
