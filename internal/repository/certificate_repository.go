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

const certificateColumns = `id, certificate_number, verification_code, student_id, course_id, enrollment_id,
        status, grade, template, student_name, course_title, file_path,
        issued_at, issued_by, revoked_at, revoked_by, revocation_reason, created_at, updated_at`

// CertificateRepository handles persistence of completion certificates and
// their yearly numbering sequence.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// List returns certificates filtered by the provided criteria.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT %s FROM certificates%s ORDER BY issued_at %s LIMIT %d OFFSET %d`,
		certificateColumns, clause, order, size, offset)

	var certificates []models.Certificate
	if err := r.db.SelectContext(ctx, &certificates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM certificates%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}
	return certificates, total, nil
}

// FindByID returns a certificate by its ID.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE id = $1`, certificateColumns)
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, id); err != nil {
		return nil, err
	}
	return &certificate, nil
}

// FindByCode looks up a certificate by number or verification code for the
// public verify endpoint.
func (r *CertificateRepository) FindByCode(ctx context.Context, code string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE certificate_number = $1 OR verification_code = $1`, certificateColumns)
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, code); err != nil {
		return nil, err
	}
	return &certificate, nil
}

// FindIssued returns the currently issued certificate for a (student, course)
// pair, or nil when none is issued. Revoked certificates are ignored so a
// new one can be issued after revocation.
func (r *CertificateRepository) FindIssued(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`, certificateColumns)
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, studentID, courseID, models.CertificateStatusIssued); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find issued certificate: %w", err)
	}
	return &certificate, nil
}

// NextSequence atomically advances and returns the numbering sequence for
// the given year.
func (r *CertificateRepository) NextSequence(ctx context.Context, year int) (int, error) {
	const query = `INSERT INTO certificate_sequences (year, last_value) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_value = certificate_sequences.last_value + 1
        RETURNING last_value`
	var seq int
	if err := r.db.GetContext(ctx, &seq, query, year); err != nil {
		return 0, fmt.Errorf("advance certificate sequence: %w", err)
	}
	return seq, nil
}

// Create persists a new certificate record.
func (r *CertificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	if certificate.ID == "" {
		certificate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	certificate.CreatedAt = now
	certificate.UpdatedAt = now
	if certificate.IssuedAt.IsZero() {
		certificate.IssuedAt = now
	}
	const query = `INSERT INTO certificates (id, certificate_number, verification_code, student_id, course_id, enrollment_id,
        status, grade, template, student_name, course_title, file_path,
        issued_at, issued_by, revoked_at, revoked_by, revocation_reason, created_at, updated_at)
        VALUES (:id, :certificate_number, :verification_code, :student_id, :course_id, :enrollment_id,
        :status, :grade, :template, :student_name, :course_title, :file_path,
        :issued_at, :issued_by, :revoked_at, :revoked_by, :revocation_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, certificate); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// UpdateStatus persists a revoke or restore transition.
func (r *CertificateRepository) UpdateStatus(ctx context.Context, certificate *models.Certificate) error {
	certificate.UpdatedAt = time.Now().UTC()
	const query = `UPDATE certificates SET status = :status, revoked_at = :revoked_at, revoked_by = :revoked_by,
        revocation_reason = :revocation_reason, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, certificate); err != nil {
		return fmt.Errorf("update certificate status: %w", err)
	}
	return nil
}

// UpdateFilePath stores the rendered PDF location.
func (r *CertificateRepository) UpdateFilePath(ctx context.Context, id, path string) error {
	const query = `UPDATE certificates SET file_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("update certificate file path: %w", err)
	}
	return nil
}
