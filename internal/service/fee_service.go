package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sat-lms-api/internal/models"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
	"github.com/noah-isme/sat-lms-api/pkg/export"
)

type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeRecord, error)
	HasOverduePending(ctx context.Context, studentID string, now time.Time) (bool, error)
	Exists(ctx context.Context, studentID string, month, year int) (bool, error)
	Create(ctx context.Context, fee *models.FeeRecord) error
	Update(ctx context.Context, fee *models.FeeRecord) error
	ListActiveStudentIDs(ctx context.Context) ([]string, error)
}

type feeEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string, activeOnly bool) ([]models.Enrollment, error)
	SetBlock(ctx context.Context, id string, blocked bool, reason, blockedBy *string, at *time.Time) error
	BlockByStudents(ctx context.Context, courseID string, studentIDs []string, reason string, blockedBy *string, at time.Time) (int64, error)
}

type feeNotifier interface {
	NotifyAccessBlocked(studentID, reason string)
	NotifyFeeReviewed(fee *models.FeeRecord)
}

// FeeConfig tunes fee generation and defaulter blocking.
type FeeConfig struct {
	DefaultAmount float64
	DueDay        int
	BlockReason   string
}

// GenerateFeesRequest asks for one fee row per active student for a month.
type GenerateFeesRequest struct {
	Month  int     `json:"month" validate:"required,min=1,max=12"`
	Year   int     `json:"year" validate:"required,min=2000"`
	Amount float64 `json:"amount" validate:"omitempty,gt=0"`
}

// GenerateFeesResult reports how many rows a generation run produced.
type GenerateFeesResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// SubmitProofRequest carries a student's payment proof.
type SubmitProofRequest struct {
	ProofURL string `json:"proof_url" validate:"required,url"`
	Note     string `json:"note" validate:"omitempty,max=500"`
}

// ReviewFeeRequest approves or rejects a submitted payment proof.
type ReviewFeeRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Note   string `json:"note" validate:"omitempty,max=500"`
}

// BlockAccessRequest carries the reason for a manual access block.
type BlockAccessRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// BulkBlockResult reports the outcome of a defaulter sweep.
type BulkBlockResult struct {
	Defaulters         []string `json:"defaulters"`
	BlockedEnrollments int64    `json:"blocked_enrollments"`
}

// FeeService manages monthly fee records and the access gate driven by
// overdue payments.
type FeeService struct {
	repo        feeRepository
	enrollments feeEnrollmentRepository
	notifier    feeNotifier
	exporter    *export.CSVExporter
	cfg         FeeConfig
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeRepository, enrollments feeEnrollmentRepository, notifier feeNotifier, cfg FeeConfig, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if cfg.DueDay < 1 || cfg.DueDay > 28 {
		cfg.DueDay = 10
	}
	if cfg.BlockReason == "" {
		cfg.BlockReason = "overdue fee payment"
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		repo:        repo,
		enrollments: enrollments,
		notifier:    notifier,
		exporter:    export.NewCSVExporter(),
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns fee records with pagination metadata.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, *models.Pagination, error) {
	fees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return fees, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a fee record by ID.
func (s *FeeService) Get(ctx context.Context, id string) (*models.FeeRecord, error) {
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	return fee, nil
}

// IsDefaulter reports whether the student has any PENDING fee past its due
// date. SUBMITTED proofs awaiting review do not count.
func (s *FeeService) IsDefaulter(ctx context.Context, studentID string) (bool, error) {
	overdue, err := s.repo.HasOverduePending(ctx, studentID, s.now())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fee status")
	}
	return overdue, nil
}

// GenerateMonthlyFees creates one PENDING fee row per active student for the
// given month, skipping students who already have one. Re-running a month is
// safe.
func (s *FeeService) GenerateMonthlyFees(ctx context.Context, req GenerateFeesRequest) (*GenerateFeesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee generation payload")
	}
	amount := req.Amount
	if amount <= 0 {
		amount = s.cfg.DefaultAmount
	}
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fee amount is not configured")
	}

	studentIDs, err := s.repo.ListActiveStudentIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	dueDate := time.Date(req.Year, time.Month(req.Month), s.cfg.DueDay, 0, 0, 0, 0, time.UTC)
	result := &GenerateFeesResult{}
	for _, studentID := range studentIDs {
		exists, err := s.repo.Exists(ctx, studentID, req.Month, req.Year)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing fee")
		}
		if exists {
			result.Skipped++
			continue
		}
		fee := &models.FeeRecord{
			StudentID: studentID,
			Month:     req.Month,
			Year:      req.Year,
			Amount:    amount,
			Status:    models.FeeStatusPending,
			DueDate:   dueDate,
		}
		if err := s.repo.Create(ctx, fee); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee record")
		}
		result.Created++
	}
	s.logger.Info("monthly fees generated",
		zap.Int("month", req.Month), zap.Int("year", req.Year),
		zap.Int("created", result.Created), zap.Int("skipped", result.Skipped))
	return result, nil
}

// SubmitProof attaches a payment proof to the student's own fee record and
// moves it to SUBMITTED. Rejected records may be resubmitted.
func (s *FeeService) SubmitProof(ctx context.Context, id, studentID string, req SubmitProofRequest) (*models.FeeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proof payload")
	}
	fee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fee.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "fee record belongs to another student")
	}
	if fee.Status != models.FeeStatusPending && fee.Status != models.FeeStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("fee record is %s", fee.Status))
	}
	fee.Status = models.FeeStatusSubmitted
	fee.ProofURL = &req.ProofURL
	if req.Note != "" {
		fee.ProofNote = &req.Note
	}
	fee.ReviewedBy = nil
	fee.ReviewedAt = nil
	if err := s.repo.Update(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit proof")
	}
	return fee, nil
}

// Review approves or rejects a SUBMITTED payment proof. Approval records the
// payment time; rejection sends the record back for resubmission.
func (s *FeeService) Review(ctx context.Context, id string, req ReviewFeeRequest, reviewedBy string) (*models.FeeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	fee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fee.Status != models.FeeStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("fee record is %s", fee.Status))
	}
	now := s.now()
	if req.Action == "approve" {
		fee.Status = models.FeeStatusApproved
		fee.PaidAt = &now
	} else {
		fee.Status = models.FeeStatusRejected
	}
	if req.Note != "" {
		fee.ProofNote = &req.Note
	}
	fee.ReviewedBy = &reviewedBy
	fee.ReviewedAt = &now
	if err := s.repo.Update(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review fee")
	}
	if s.notifier != nil {
		s.notifier.NotifyFeeReviewed(fee)
	}
	return fee, nil
}

// BlockAccess blocks a single enrollment. Blocking an already blocked
// enrollment overwrites the reason and timestamp instead of failing, so the
// call is idempotent.
func (s *FeeService) BlockAccess(ctx context.Context, enrollmentID string, req BlockAccessRequest, blockedBy string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}
	enrollment, err := s.findEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	alreadyBlocked := enrollment.AccessBlocked
	now := s.now()
	if err := s.enrollments.SetBlock(ctx, enrollmentID, true, &req.Reason, &blockedBy, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block enrollment")
	}
	enrollment.AccessBlocked = true
	enrollment.BlockedReason = &req.Reason
	enrollment.BlockedBy = &blockedBy
	enrollment.BlockedAt = &now
	if s.notifier != nil && !alreadyBlocked {
		s.notifier.NotifyAccessBlocked(enrollment.StudentID, req.Reason)
	}
	return enrollment, nil
}

// UnblockAccess clears the block on an enrollment.
func (s *FeeService) UnblockAccess(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.findEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !enrollment.AccessBlocked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not blocked")
	}
	if err := s.enrollments.SetBlock(ctx, enrollmentID, false, nil, nil, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unblock enrollment")
	}
	enrollment.AccessBlocked = false
	enrollment.BlockedReason = nil
	enrollment.BlockedBy = nil
	enrollment.BlockedAt = nil
	return enrollment, nil
}

// BulkBlockDefaulters blocks every active enrollment of a course whose
// student has an overdue PENDING fee. Each distinct student is evaluated
// once; already blocked enrollments are left untouched, so repeated sweeps
// are safe. Enrollments in other courses are never touched.
func (s *FeeService) BulkBlockDefaulters(ctx context.Context, courseID, blockedBy string) (*BulkBlockResult, error) {
	enrollments, err := s.enrollments.ListByCourse(ctx, courseID, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course enrollments")
	}
	now := s.now()
	overdueByStudent := make(map[string]bool)
	defaulters := make([]string, 0)
	newlyBlocked := make(map[string]bool)
	for i := range enrollments {
		enrollment := &enrollments[i]
		overdue, checked := overdueByStudent[enrollment.StudentID]
		if !checked {
			overdue, err = s.repo.HasOverduePending(ctx, enrollment.StudentID, now)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fee status")
			}
			overdueByStudent[enrollment.StudentID] = overdue
			if overdue {
				defaulters = append(defaulters, enrollment.StudentID)
			}
		}
		if overdue && !enrollment.AccessBlocked {
			newlyBlocked[enrollment.StudentID] = true
		}
	}
	blocked, err := s.enrollments.BlockByStudents(ctx, courseID, defaulters, s.cfg.BlockReason, &blockedBy, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block defaulters")
	}
	if s.notifier != nil {
		for _, studentID := range defaulters {
			if newlyBlocked[studentID] {
				s.notifier.NotifyAccessBlocked(studentID, s.cfg.BlockReason)
			}
		}
	}
	s.logger.Info("defaulter sweep finished",
		zap.String("course_id", courseID),
		zap.Int("defaulters", len(defaulters)), zap.Int64("blocked_enrollments", blocked))
	return &BulkBlockResult{Defaulters: defaulters, BlockedEnrollments: blocked}, nil
}

// ExportCSV renders the filtered fee list as a CSV document.
func (s *FeeService) ExportCSV(ctx context.Context, filter models.FeeFilter) ([]byte, string, error) {
	filter.Page = 1
	filter.PageSize = 10000
	fees, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	dataset := export.Dataset{
		Headers: []string{"student_name", "student_email", "month", "year", "amount", "status", "due_date", "paid_at"},
	}
	for _, fee := range fees {
		paidAt := ""
		if fee.PaidAt != nil {
			paidAt = fee.PaidAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_name":  fee.StudentName,
			"student_email": fee.StudentEmail,
			"month":         strconv.Itoa(fee.Month),
			"year":          strconv.Itoa(fee.Year),
			"amount":        strconv.FormatFloat(fee.Amount, 'f', 2, 64),
			"status":        string(fee.Status),
			"due_date":      fee.DueDate.Format("2006-01-02"),
			"paid_at":       paidAt,
		})
	}
	data, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	filename := fmt.Sprintf("fees_%s.csv", s.now().Format("20060102_150405"))
	return data, filename, nil
}

func (s *FeeService) findEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}
