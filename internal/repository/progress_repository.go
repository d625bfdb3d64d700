package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

const progressColumns = `id, student_id, class_id, course_id, status, watch_progress,
        last_position, total_watch_time, access_count, started_at, completed_at, created_at, updated_at`

// ProgressRepository handles persistence of per-class watch state.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// FindByStudentAndClass returns the unique progress record for the pair.
func (r *ProgressRepository) FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.ProgressRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM progress_records WHERE student_id = $1 AND class_id = $2`, progressColumns)
	var record models.ProgressRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, classID); err != nil {
		return nil, err
	}
	return &record, nil
}

// RecordAccess upserts the progress row for an access event. Concurrent
// duplicate pings land on the conflict branch instead of creating duplicate
// rows; the unique (student_id, class_id) constraint is the only guard
// needed.
func (r *ProgressRepository) RecordAccess(ctx context.Context, studentID, classID, courseID string, at time.Time) (*models.ProgressRecord, error) {
	query := fmt.Sprintf(`INSERT INTO progress_records (id, student_id, class_id, course_id, status, watch_progress,
        last_position, total_watch_time, access_count, started_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, 0, 0, 1, $6, $6, $6)
        ON CONFLICT (student_id, class_id) DO UPDATE
        SET access_count = progress_records.access_count + 1, updated_at = EXCLUDED.updated_at
        RETURNING %s`, progressColumns)
	var record models.ProgressRecord
	if err := r.db.GetContext(ctx, &record, query, uuid.NewString(), studentID, classID, courseID,
		models.ProgressStatusInProgress, at); err != nil {
		return nil, fmt.Errorf("record class access: %w", err)
	}
	return &record, nil
}

// Update persists watch-state changes for an existing record.
func (r *ProgressRepository) Update(ctx context.Context, record *models.ProgressRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE progress_records SET status = :status, watch_progress = :watch_progress,
        last_position = :last_position, total_watch_time = :total_watch_time,
        completed_at = :completed_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update progress record: %w", err)
	}
	return nil
}

// CountCompleted returns the number of completed classes a student has for a
// course.
func (r *ProgressRepository) CountCompleted(ctx context.Context, studentID, courseID string) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM progress_records WHERE student_id = $1 AND course_id = $2 AND status = $3`
	if err := r.db.GetContext(ctx, &total, query, studentID, courseID, models.ProgressStatusCompleted); err != nil {
		return 0, fmt.Errorf("count completed classes: %w", err)
	}
	return total, nil
}

// ListByStudentAndCourse returns all progress rows of a student within a
// course.
func (r *ProgressRepository) ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.ProgressRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM progress_records WHERE student_id = $1 AND course_id = $2`, progressColumns)
	var records []models.ProgressRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list progress records: %w", err)
	}
	return records, nil
}
