package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

const feeColumns = `id, student_id, month, year, amount, status, due_date, paid_at,
        proof_url, proof_note, reviewed_by, reviewed_at, created_at, updated_at`

// FeeRepository handles persistence of monthly fee records.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// List returns fee records filtered by the provided criteria.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	base := `FROM fee_records f
LEFT JOIN users u ON u.id = f.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Month > 0 {
		conditions = append(conditions, fmt.Sprintf("f.month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("f.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Overdue != nil && *filter.Overdue {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d AND f.due_date < $%d", len(args)+1, len(args)+2))
		args = append(args, models.FeeStatusPending, time.Now().UTC())
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"due_date":     "f.due_date",
		"student_name": "u.full_name",
		"created_at":   "f.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "f.due_date"
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

	query := fmt.Sprintf(`SELECT f.*, u.full_name AS student_name, u.email AS student_email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var fees []models.FeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee records: %w", err)
	}
	return fees, total, nil
}

// FindByID returns a fee record by its ID.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_records WHERE id = $1`, feeColumns)
	var fee models.FeeRecord
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// HasOverduePending reports whether the student has at least one PENDING fee
// past its due date. This single query defines defaulter status.
func (r *FeeRepository) HasOverduePending(ctx context.Context, studentID string, now time.Time) (bool, error) {
	var exists int
	const query = `SELECT 1 FROM fee_records WHERE student_id = $1 AND status = $2 AND due_date < $3 LIMIT 1`
	err := r.db.GetContext(ctx, &exists, query, studentID, models.FeeStatusPending, now)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check overdue fees: %w", err)
	}
	return true, nil
}

// Exists checks whether a fee record exists for (student, month, year).
func (r *FeeRepository) Exists(ctx context.Context, studentID string, month, year int) (bool, error) {
	var exists int
	const query = `SELECT 1 FROM fee_records WHERE student_id = $1 AND month = $2 AND year = $3 LIMIT 1`
	err := r.db.GetContext(ctx, &exists, query, studentID, month, year)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check fee record: %w", err)
	}
	return true, nil
}

// Create persists a new fee record.
func (r *FeeRepository) Create(ctx context.Context, fee *models.FeeRecord) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	if fee.Status == "" {
		fee.Status = models.FeeStatusPending
	}
	const query = `INSERT INTO fee_records (id, student_id, month, year, amount, status, due_date, paid_at,
        proof_url, proof_note, reviewed_by, reviewed_at, created_at, updated_at)
        VALUES (:id, :student_id, :month, :year, :amount, :status, :due_date, :paid_at,
        :proof_url, :proof_note, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee record: %w", err)
	}
	return nil
}

// Update persists fee lifecycle changes.
func (r *FeeRepository) Update(ctx context.Context, fee *models.FeeRecord) error {
	fee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fee_records SET status = :status, paid_at = :paid_at, proof_url = :proof_url,
        proof_note = :proof_note, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("update fee record: %w", err)
	}
	return nil
}

// ListActiveStudentIDs returns the IDs of all active student users, used by
// monthly fee generation.
func (r *FeeRepository) ListActiveStudentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	const query = `SELECT id FROM users WHERE role = $1 AND active = TRUE`
	if err := r.db.SelectContext(ctx, &ids, query, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return ids, nil
}
