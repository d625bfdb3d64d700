package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, status, enrollment_type,
        access_blocked, blocked_reason, blocked_at, blocked_by,
        completed_classes, total_classes, percentage, last_accessed_class, last_accessed_at,
        completed_at, certificate_issued, certificate_id, enrolled_at, updated_at`

// EnrollmentRepository handles persistence of enrollments and their
// per-class access overrides.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN users u ON u.id = e.student_id
LEFT JOIN courses co ON co.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Blocked != nil {
		conditions = append(conditions, fmt.Sprintf("e.access_blocked = $%d", len(args)+1))
		args = append(args, *filter.Blocked)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "u.full_name",
		"course_title": "co.title",
		"percentage":   "e.percentage",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.*, u.full_name AS student_name, u.email AS student_email, co.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndCourse returns the unique enrollment for the pair.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND course_id = $2`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists checks whether an enrollment exists for the pair.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`, studentID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListByCourse returns enrollments of a course, optionally restricted to
// active ones.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string, activeOnly bool) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1`, enrollmentColumns)
	args := []interface{}{courseID}
	if activeOnly {
		query += " AND status = $2"
		args = append(args, models.EnrollmentStatusActive)
	}
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	if enrollment.Type == "" {
		enrollment.Type = models.EnrollmentTypeManual
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, enrollment_type,
        access_blocked, blocked_reason, blocked_at, blocked_by,
        completed_classes, total_classes, percentage, last_accessed_class, last_accessed_at,
        completed_at, certificate_issued, certificate_id, enrolled_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :enrollment_type,
        :access_blocked, :blocked_reason, :blocked_at, :blocked_by,
        :completed_classes, :total_classes, :percentage, :last_accessed_class, :last_accessed_at,
        :completed_at, :certificate_issued, :certificate_id, :enrolled_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateProgressSummary stores the recomputed progress view and any status
// transition that came with it.
func (r *EnrollmentRepository) UpdateProgressSummary(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET completed_classes = :completed_classes, total_classes = :total_classes,
        percentage = :percentage, status = :status, completed_at = :completed_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

// TouchLastAccess records the most recently watched class.
func (r *EnrollmentRepository) TouchLastAccess(ctx context.Context, id, classID string, at time.Time) error {
	const query = `UPDATE enrollments SET last_accessed_class = $2, last_accessed_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, classID, at); err != nil {
		return fmt.Errorf("touch enrollment access: %w", err)
	}
	return nil
}

// SetBlock sets or clears the access block fields.
func (r *EnrollmentRepository) SetBlock(ctx context.Context, id string, blocked bool, reason, blockedBy *string, at *time.Time) error {
	const query = `UPDATE enrollments SET access_blocked = $2, blocked_reason = $3, blocked_by = $4, blocked_at = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, blocked, reason, blockedBy, at, time.Now().UTC()); err != nil {
		return fmt.Errorf("set enrollment block: %w", err)
	}
	return nil
}

// BlockByStudents blocks every enrollment in a course belonging to the given
// students that is not already blocked, returning the number of affected
// rows.
func (r *EnrollmentRepository) BlockByStudents(ctx context.Context, courseID string, studentIDs []string, reason string, blockedBy *string, at time.Time) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	const query = `UPDATE enrollments SET access_blocked = TRUE, blocked_reason = $3, blocked_by = $4, blocked_at = $5, updated_at = $5
        WHERE course_id = $1 AND student_id = ANY($2) AND access_blocked = FALSE`
	result, err := r.db.ExecContext(ctx, query, courseID, pq.Array(studentIDs), reason, blockedBy, at)
	if err != nil {
		return 0, fmt.Errorf("block enrollments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("block enrollments affected rows: %w", err)
	}
	return affected, nil
}

// SetCertificate marks an enrollment as certified and transitions it to
// COMPLETED, keeping any completion timestamp already recorded.
func (r *EnrollmentRepository) SetCertificate(ctx context.Context, id, certificateID string, completedAt time.Time) error {
	const query = `UPDATE enrollments SET certificate_issued = TRUE, certificate_id = $2,
        status = $3, completed_at = COALESCE(completed_at, $4), updated_at = $5
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, certificateID, models.EnrollmentStatusCompleted, completedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set enrollment certificate: %w", err)
	}
	return nil
}

// Delete removes an enrollment together with its progress records and
// overrides.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	enrollment, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM progress_records WHERE student_id = $1 AND course_id = $2`,
		enrollment.StudentID, enrollment.CourseID); err != nil {
		return fmt.Errorf("delete enrollment progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollment_class_overrides WHERE enrollment_id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment overrides: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment delete: %w", err)
	}
	return nil
}

// FindOverride returns the override row for (enrollment, class) if any.
func (r *EnrollmentRepository) FindOverride(ctx context.Context, enrollmentID, classID string) (*models.ClassOverride, error) {
	const query = `SELECT id, enrollment_id, class_id, state, created_at, updated_at
        FROM enrollment_class_overrides WHERE enrollment_id = $1 AND class_id = $2`
	var override models.ClassOverride
	if err := r.db.GetContext(ctx, &override, query, enrollmentID, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find class override: %w", err)
	}
	return &override, nil
}

// UpsertOverride writes the override state for (enrollment, class),
// replacing any previous state. A single row per pair keeps lock and unlock
// mutually exclusive.
func (r *EnrollmentRepository) UpsertOverride(ctx context.Context, enrollmentID, classID string, state models.OverrideState) error {
	now := time.Now().UTC()
	const query = `INSERT INTO enrollment_class_overrides (id, enrollment_id, class_id, state, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (enrollment_id, class_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), enrollmentID, classID, state, now); err != nil {
		return fmt.Errorf("upsert class override: %w", err)
	}
	return nil
}

// ListOverrides returns all override rows for an enrollment.
func (r *EnrollmentRepository) ListOverrides(ctx context.Context, enrollmentID string) ([]models.ClassOverride, error) {
	const query = `SELECT id, enrollment_id, class_id, state, created_at, updated_at
        FROM enrollment_class_overrides WHERE enrollment_id = $1 ORDER BY created_at ASC`
	var overrides []models.ClassOverride
	if err := r.db.SelectContext(ctx, &overrides, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list class overrides: %w", err)
	}
	return overrides, nil
}
