package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

const classColumns = `id, course_id, title, section, position, is_locked, is_published, is_preview,
        unlock_at, video_url, duration_seconds, created_at, updated_at`

// ClassRepository handles persistence of class records.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1`, classColumns)
	var class models.ClassRecord
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByCourse returns classes of a course ordered for navigation.
func (r *ClassRepository) ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.ClassRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE course_id = $1`, classColumns)
	args := []interface{}{courseID}
	if publishedOnly {
		query += " AND is_published = TRUE"
	}
	query += " ORDER BY section ASC, position ASC"
	var classes []models.ClassRecord
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list course classes: %w", err)
	}
	return classes, nil
}

// CountPublishedByCourse returns the current number of published classes.
// Enrollment progress is always recomputed against this live count rather
// than a stored total, since classes can be added or removed after
// enrollment.
func (r *ClassRepository) CountPublishedByCourse(ctx context.Context, courseID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes WHERE course_id = $1 AND is_published = TRUE`, courseID); err != nil {
		return 0, fmt.Errorf("count published classes: %w", err)
	}
	return total, nil
}

// Siblings returns the previous and next published classes around the given
// class in (section, position) order.
func (r *ClassRepository) Siblings(ctx context.Context, class *models.ClassRecord) (prev, next *models.ClassSibling, err error) {
	const prevQuery = `SELECT id, title, section, position, is_preview, is_locked FROM classes
        WHERE course_id = $1 AND is_published = TRUE AND (section, position) < ($2, $3)
        ORDER BY section DESC, position DESC LIMIT 1`
	const nextQuery = `SELECT id, title, section, position, is_preview, is_locked FROM classes
        WHERE course_id = $1 AND is_published = TRUE AND (section, position) > ($2, $3)
        ORDER BY section ASC, position ASC LIMIT 1`

	var p models.ClassSibling
	switch err := r.db.GetContext(ctx, &p, prevQuery, class.CourseID, class.Section, class.Position); err {
	case nil:
		prev = &p
	case sql.ErrNoRows:
	default:
		return nil, nil, fmt.Errorf("find previous class: %w", err)
	}

	var n models.ClassSibling
	switch err := r.db.GetContext(ctx, &n, nextQuery, class.CourseID, class.Section, class.Position); err {
	case nil:
		next = &n
	case sql.ErrNoRows:
	default:
		return nil, nil, fmt.Errorf("find next class: %w", err)
	}
	return prev, next, nil
}

// Create persists a new class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassRecord) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, course_id, title, section, position, is_locked, is_published, is_preview,
        unlock_at, video_url, duration_seconds, created_at, updated_at)
        VALUES (:id, :course_id, :title, :section, :position, :is_locked, :is_published, :is_preview,
        :unlock_at, :video_url, :duration_seconds, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update persists class field changes.
func (r *ClassRepository) Update(ctx context.Context, class *models.ClassRecord) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET title = :title, section = :section, position = :position,
        is_locked = :is_locked, is_published = :is_published, is_preview = :is_preview,
        unlock_at = :unlock_at, video_url = :video_url, duration_seconds = :duration_seconds,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class and its progress records.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin class delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM progress_records WHERE class_id = $1`, id); err != nil {
		return fmt.Errorf("delete class progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollment_class_overrides WHERE class_id = $1`, id); err != nil {
		return fmt.Errorf("delete class overrides: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit class delete: %w", err)
	}
	return nil
}
