package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sat-lms-api/internal/models"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
	"github.com/noah-isme/sat-lms-api/pkg/export"
)

type certificateRepository interface {
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindByCode(ctx context.Context, code string) (*models.Certificate, error)
	FindIssued(ctx context.Context, studentID, courseID string) (*models.Certificate, error)
	NextSequence(ctx context.Context, year int) (int, error)
	Create(ctx context.Context, certificate *models.Certificate) error
	UpdateStatus(ctx context.Context, certificate *models.Certificate) error
	UpdateFilePath(ctx context.Context, id, path string) error
}

type certificateEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	SetCertificate(ctx context.Context, id, certificateID string, completedAt time.Time) error
}

type certificateRenderer interface {
	Render(data export.CertificateData) ([]byte, error)
}

type certificateStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

type signedURLGenerator interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

type notificationEnqueuer interface {
	NotifyCertificateIssued(certificate *models.Certificate)
}

// CertificateConfig tunes numbering and rendering.
type CertificateConfig struct {
	NumberPrefix    string
	SequenceDigits  int
	CodeSuffixBytes int
	DefaultTemplate string
	DefaultGrade    string
	IssuerName      string
	IssuerSignatory string
	VerifyCacheTTL  time.Duration
}

// IssueCertificateRequest is the admin issuance payload.
type IssueCertificateRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	CourseID     string  `json:"course_id" validate:"required"`
	EnrollmentID string  `json:"enrollment_id" validate:"omitempty"`
	Grade        string  `json:"grade" validate:"omitempty"`
	Template     string  `json:"template" validate:"omitempty"`
	IssuedBy     *string `json:"-"`
}

// GenerateCertificateRequest names the course a student requests their own
// certificate for.
type GenerateCertificateRequest struct {
	CourseID string `json:"course_id" binding:"required"`
}

// RevokeCertificateRequest is the revocation payload.
type RevokeCertificateRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CertificateDownload carries a signed download token for a rendered PDF.
type CertificateDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CertificateService issues, revokes, restores and verifies completion
// credentials.
type CertificateService struct {
	repo        certificateRepository
	enrollments certificateEnrollmentRepository
	courses     courseReader
	students    studentReader
	renderer    certificateRenderer
	storage     certificateStorage
	signer      signedURLGenerator
	cache       *CacheService
	notifier    notificationEnqueuer
	cfg         CertificateConfig
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// CertificateServiceParams groups constructor dependencies.
type CertificateServiceParams struct {
	Repo        certificateRepository
	Enrollments certificateEnrollmentRepository
	Courses     courseReader
	Students    studentReader
	Renderer    certificateRenderer
	Storage     certificateStorage
	Signer      signedURLGenerator
	Cache       *CacheService
	Notifier    notificationEnqueuer
	Config      CertificateConfig
	Validate    *validator.Validate
	Logger      *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(params CertificateServiceParams) *CertificateService {
	cfg := params.Config
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "CERT-SAT"
	}
	if cfg.SequenceDigits <= 0 {
		cfg.SequenceDigits = 5
	}
	if cfg.CodeSuffixBytes <= 0 {
		cfg.CodeSuffixBytes = 4
	}
	if cfg.DefaultTemplate == "" {
		cfg.DefaultTemplate = "classic"
	}
	if cfg.DefaultGrade == "" {
		cfg.DefaultGrade = "pass"
	}
	validate := params.Validate
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		repo:        params.Repo,
		enrollments: params.Enrollments,
		courses:     params.Courses,
		students:    params.Students,
		renderer:    params.Renderer,
		storage:     params.Storage,
		signer:      params.Signer,
		cache:       params.Cache,
		notifier:    params.Notifier,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns certificates with pagination metadata.
func (s *CertificateService) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, *models.Pagination, error) {
	certificates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return certificates, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a certificate by ID.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.Certificate, error) {
	certificate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return certificate, nil
}

// Issue creates a completion credential for a (student, course) pair. When
// an issued certificate already exists it is returned unchanged, so repeated
// issuance is idempotent. A revoked certificate does not block a new one.
// Issuance forces the enrollment to COMPLETED when automatic detection has
// not caught up yet; manual issuance is the admin escape hatch.
func (s *CertificateService) Issue(ctx context.Context, req IssueCertificateRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.CertificatesEnabled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificates are disabled for this course")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if existing, err := s.repo.FindIssued(ctx, req.StudentID, req.CourseID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing certificate")
	} else if existing != nil {
		return existing, nil
	}

	enrollment, err := s.resolveEnrollment(ctx, req)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	number, code, err := s.nextNumber(ctx, issuedAt.Year())
	if err != nil {
		return nil, err
	}

	grade := req.Grade
	if grade == "" {
		grade = s.cfg.DefaultGrade
	}
	template := req.Template
	if template == "" {
		template = s.cfg.DefaultTemplate
	}

	certificate := &models.Certificate{
		CertificateNumber: number,
		VerificationCode:  code,
		StudentID:         req.StudentID,
		CourseID:          req.CourseID,
		Status:            models.CertificateStatusIssued,
		Grade:             grade,
		Template:          template,
		StudentName:       student.FullName,
		CourseTitle:       course.Title,
		IssuedAt:          issuedAt,
		IssuedBy:          req.IssuedBy,
	}
	if enrollment != nil {
		certificate.EnrollmentID = &enrollment.ID
	}

	if err := s.repo.Create(ctx, certificate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}

	if enrollment != nil {
		if err := s.enrollments.SetCertificate(ctx, enrollment.ID, certificate.ID, issuedAt); err != nil {
			// The certificate exists but the enrollment flag write failed.
			// A retry of Issue returns the same certificate and repeats
			// this update.
			s.logger.Error("failed to flag enrollment as certified",
				zap.String("enrollment_id", enrollment.ID), zap.String("certificate_id", certificate.ID), zap.Error(err))
		}
	}

	s.renderAndStore(ctx, certificate)

	if s.notifier != nil {
		s.notifier.NotifyCertificateIssued(certificate)
	}
	return certificate, nil
}

// Generate is the student-initiated issuance path. It requires the
// enrollment to be COMPLETED and always issues with the default grade; no
// scoring algorithm exists.
func (s *CertificateService) Generate(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not completed yet")
	}
	return s.Issue(ctx, IssueCertificateRequest{
		StudentID:    studentID,
		CourseID:     courseID,
		EnrollmentID: enrollment.ID,
	})
}

// Revoke transitions an issued certificate to REVOKED.
func (s *CertificateService) Revoke(ctx context.Context, id string, req RevokeCertificateRequest, revokedBy string) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revoke payload")
	}
	certificate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if certificate.Status == models.CertificateStatusRevoked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate already revoked")
	}
	now := s.now()
	certificate.Status = models.CertificateStatusRevoked
	certificate.RevokedAt = &now
	certificate.RevokedBy = &revokedBy
	certificate.RevocationReason = &req.Reason
	if err := s.repo.UpdateStatus(ctx, certificate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke certificate")
	}
	s.invalidateVerifyCache(ctx, certificate)
	return certificate, nil
}

// Restore transitions a revoked certificate back to ISSUED and clears the
// revocation fields.
func (s *CertificateService) Restore(ctx context.Context, id string) (*models.Certificate, error) {
	certificate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if certificate.Status == models.CertificateStatusIssued {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate is not revoked")
	}
	certificate.Status = models.CertificateStatusIssued
	certificate.RevokedAt = nil
	certificate.RevokedBy = nil
	certificate.RevocationReason = nil
	if err := s.repo.UpdateStatus(ctx, certificate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore certificate")
	}
	s.invalidateVerifyCache(ctx, certificate)
	return certificate, nil
}

// Verify resolves a certificate by number or verification code for the
// public endpoint. Revoked certificates report their status and reason but
// never the full payload.
func (s *CertificateService) Verify(ctx context.Context, code string) (*models.CertificateVerification, error) {
	cacheKey := fmt.Sprintf("cert:verify:%s", strings.ToUpper(code))
	var cached models.CertificateVerification
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	certificate, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.CertificateVerification{Valid: false, Status: "not_found"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}

	var verification models.CertificateVerification
	if certificate.Status == models.CertificateStatusRevoked {
		verification = models.CertificateVerification{
			Valid:            false,
			Status:           "revoked",
			RevocationReason: certificate.RevocationReason,
		}
	} else {
		verification = models.CertificateVerification{
			Valid:  true,
			Status: "issued",
			Data: &models.CertificatePublic{
				CertificateNumber: certificate.CertificateNumber,
				StudentName:       certificate.StudentName,
				CourseTitle:       certificate.CourseTitle,
				Grade:             certificate.Grade,
				IssuedAt:          certificate.IssuedAt,
			},
		}
	}

	s.cache.Set(ctx, cacheKey, verification, s.cfg.VerifyCacheTTL)
	return &verification, nil
}

// DownloadURL returns a signed token for the certificate's rendered PDF.
func (s *CertificateService) DownloadURL(ctx context.Context, id string) (*CertificateDownload, error) {
	certificate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if certificate.Status != models.CertificateStatusIssued {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate is revoked")
	}
	if certificate.FilePath == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate file not available")
	}
	token, expiresAt, err := s.signer.Generate(certificate.ID, *certificate.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &CertificateDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload redeems a signed token and returns the absolute file path
// to serve together with a download filename.
func (s *CertificateService) ResolveDownload(token string) (path, filename string, err error) {
	if s.signer == nil || s.storage == nil {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "certificate file not available")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	return s.storage.Path(relPath), filepath.Base(relPath), nil
}

func (s *CertificateService) resolveEnrollment(ctx context.Context, req IssueCertificateRequest) (*models.Enrollment, error) {
	if req.EnrollmentID != "" {
		enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		return enrollment, nil
	}
	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Admin issuance may precede enrollment bookkeeping.
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *CertificateService) nextNumber(ctx context.Context, year int) (number, code string, err error) {
	seq, err := s.repo.NextSequence(ctx, year)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate certificate number")
	}
	number = fmt.Sprintf("%s-%d-%0*d", s.cfg.NumberPrefix, year, s.cfg.SequenceDigits, seq)
	suffix := make([]byte, s.cfg.CodeSuffixBytes)
	if _, err := rand.Read(suffix); err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification code")
	}
	code = fmt.Sprintf("%s-%s", number, strings.ToUpper(hex.EncodeToString(suffix)))
	return number, code, nil
}

func (s *CertificateService) renderAndStore(ctx context.Context, certificate *models.Certificate) {
	if s.renderer == nil || s.storage == nil {
		return
	}
	pdf, err := s.renderer.Render(export.CertificateData{
		Number:      certificate.CertificateNumber,
		Code:        certificate.VerificationCode,
		StudentName: certificate.StudentName,
		CourseTitle: certificate.CourseTitle,
		Grade:       certificate.Grade,
		IssuedAt:    certificate.IssuedAt,
		IssuerName:  s.cfg.IssuerName,
		Signatory:   s.cfg.IssuerSignatory,
	})
	if err != nil {
		s.logger.Error("failed to render certificate pdf", zap.String("certificate_id", certificate.ID), zap.Error(err))
		return
	}
	filename := fmt.Sprintf("%d/%s.pdf", certificate.IssuedAt.Year(), certificate.CertificateNumber)
	relPath, err := s.storage.Save(filename, pdf)
	if err != nil {
		s.logger.Error("failed to store certificate pdf", zap.String("certificate_id", certificate.ID), zap.Error(err))
		return
	}
	if err := s.repo.UpdateFilePath(ctx, certificate.ID, relPath); err != nil {
		s.logger.Error("failed to record certificate pdf path", zap.String("certificate_id", certificate.ID), zap.Error(err))
		return
	}
	certificate.FilePath = &relPath
}

func (s *CertificateService) invalidateVerifyCache(ctx context.Context, certificate *models.Certificate) {
	if !s.cache.Enabled() {
		return
	}
	for _, key := range []string{certificate.CertificateNumber, certificate.VerificationCode} {
		if err := s.cache.Invalidate(ctx, fmt.Sprintf("cert:verify:%s", strings.ToUpper(key))); err != nil {
			s.logger.Warn("failed to invalidate verification cache", zap.Error(err))
		}
	}
}
