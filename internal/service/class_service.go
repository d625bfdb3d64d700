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

type classRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassRecord, error)
	ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.ClassRecord, error)
	Create(ctx context.Context, class *models.ClassRecord) error
	Update(ctx context.Context, class *models.ClassRecord) error
	Delete(ctx context.Context, id string) error
}

// ClassDefaults carries the deployment-wide initial flags for new classes.
type ClassDefaults struct {
	Locked    bool
	Published bool
}

// CreateClassRequest is the payload for adding a class to a course. Lock and
// publish flags fall back to deployment defaults when omitted.
type CreateClassRequest struct {
	Title           string     `json:"title" validate:"required,min=3,max=200"`
	Section         string     `json:"section" validate:"omitempty,max=100"`
	Position        int        `json:"position" validate:"min=0"`
	VideoURL        string     `json:"video_url" validate:"omitempty,url"`
	DurationSeconds int        `json:"duration_seconds" validate:"min=0"`
	IsLocked        *bool      `json:"is_locked"`
	IsPublished     *bool      `json:"is_published"`
	IsPreview       bool       `json:"is_preview"`
	UnlockAt        *time.Time `json:"unlock_at"`
}

// UpdateClassRequest patches a class. Nil fields are left unchanged.
type UpdateClassRequest struct {
	Title           *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Section         *string    `json:"section" validate:"omitempty,max=100"`
	Position        *int       `json:"position" validate:"omitempty,min=0"`
	VideoURL        *string    `json:"video_url" validate:"omitempty,url"`
	DurationSeconds *int       `json:"duration_seconds" validate:"omitempty,min=0"`
	IsLocked        *bool      `json:"is_locked"`
	IsPublished     *bool      `json:"is_published"`
	IsPreview       *bool      `json:"is_preview"`
	UnlockAt        *time.Time `json:"unlock_at"`
}

// ClassService manages classes within courses.
type ClassService struct {
	repo      classRepository
	courses   courseReader
	defaults  ClassDefaults
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, courses courseReader, defaults ClassDefaults, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, courses: courses, defaults: defaults, validator: validate, logger: logger}
}

// ListByCourse returns the classes of a course in section and position
// order. Student callers only see published classes.
func (s *ClassService) ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.ClassRecord, error) {
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return nil, err
	}
	classes, err := s.repo.ListByCourse(ctx, courseID, publishedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassRecord, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create adds a class to a course.
func (s *ClassService) Create(ctx context.Context, courseID string, req CreateClassRequest) (*models.ClassRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return nil, err
	}
	class := &models.ClassRecord{
		CourseID:        courseID,
		Title:           req.Title,
		Section:         req.Section,
		Position:        req.Position,
		VideoURL:        req.VideoURL,
		DurationSeconds: req.DurationSeconds,
		IsLocked:        s.defaults.Locked,
		IsPublished:     s.defaults.Published,
		IsPreview:       req.IsPreview,
		UnlockAt:        req.UnlockAt,
	}
	if req.IsLocked != nil {
		class.IsLocked = *req.IsLocked
	}
	if req.IsPublished != nil {
		class.IsPublished = *req.IsPublished
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update patches a class.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.ClassRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		class.Title = *req.Title
	}
	if req.Section != nil {
		class.Section = *req.Section
	}
	if req.Position != nil {
		class.Position = *req.Position
	}
	if req.VideoURL != nil {
		class.VideoURL = *req.VideoURL
	}
	if req.DurationSeconds != nil {
		class.DurationSeconds = *req.DurationSeconds
	}
	if req.IsLocked != nil {
		class.IsLocked = *req.IsLocked
	}
	if req.IsPublished != nil {
		class.IsPublished = *req.IsPublished
	}
	if req.IsPreview != nil {
		class.IsPreview = *req.IsPreview
	}
	if req.UnlockAt != nil {
		class.UnlockAt = req.UnlockAt
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class together with its progress and overrides.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func (s *ClassService) findCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
