package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sat-lms-api/internal/middleware"
	"github.com/noah-isme/sat-lms-api/internal/models"
	"github.com/noah-isme/sat-lms-api/internal/service"
	"github.com/noah-isme/sat-lms-api/pkg/response"
)

type certificateRepoStub struct {
	byCode map[string]*models.Certificate
	byID   map[string]*models.Certificate
}

func (s *certificateRepoStub) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	return nil, 0, nil
}

func (s *certificateRepoStub) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	if certificate, ok := s.byID[id]; ok {
		return certificate, nil
	}
	return nil, sql.ErrNoRows
}

func (s *certificateRepoStub) FindByCode(ctx context.Context, code string) (*models.Certificate, error) {
	if certificate, ok := s.byCode[code]; ok {
		return certificate, nil
	}
	return nil, sql.ErrNoRows
}

func (s *certificateRepoStub) FindIssued(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	return nil, nil
}

func (s *certificateRepoStub) NextSequence(ctx context.Context, year int) (int, error) { return 1, nil }

func (s *certificateRepoStub) Create(ctx context.Context, certificate *models.Certificate) error {
	return nil
}

func (s *certificateRepoStub) UpdateStatus(ctx context.Context, certificate *models.Certificate) error {
	return nil
}

func (s *certificateRepoStub) UpdateFilePath(ctx context.Context, id, path string) error { return nil }

func newCertificateHandler(repo *certificateRepoStub) *CertificateHandler {
	svc := service.NewCertificateService(service.CertificateServiceParams{Repo: repo})
	return NewCertificateHandler(svc)
}

func TestCertificateHandlerVerify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &certificateRepoStub{byCode: map[string]*models.Certificate{
		"CERT-SAT-2026-00001": {
			ID:                "cert-1",
			CertificateNumber: "CERT-SAT-2026-00001",
			Status:            models.CertificateStatusIssued,
			StudentName:       "Ada Lovelace",
			CourseTitle:       "Algebra",
			Grade:             "pass",
			IssuedAt:          time.Now().UTC(),
		},
	}}
	handler := newCertificateHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/certificates/verify/CERT-SAT-2026-00001", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "code", Value: "CERT-SAT-2026-00001"}}

	handler.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var verification models.CertificateVerification
	require.NoError(t, json.Unmarshal(payload, &verification))
	assert.True(t, verification.Valid)
	assert.Equal(t, "issued", verification.Status)
	require.NotNil(t, verification.Data)
	assert.Equal(t, "Ada Lovelace", verification.Data.StudentName)
}

func TestCertificateHandlerVerifyUnknown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCertificateHandler(&certificateRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/certificates/verify/NOPE", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "code", Value: "NOPE"}}

	handler.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestCertificateHandlerIssueRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCertificateHandler(&certificateRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.IssueCertificateRequest{StudentID: "student-1", CourseID: "course-1"})
	req, _ := http.NewRequest(http.MethodPost, "/certificates", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Issue(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCertificateHandlerIssueInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCertificateHandler(&certificateRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/certificates", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Issue(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCertificateHandlerGenerateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCertificateHandler(&certificateRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.GenerateCertificateRequest{CourseID: "course-1"})
	req, _ := http.NewRequest(http.MethodPost, "/certificates/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Generate(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCertificateHandlerGenerateMissingCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCertificateHandler(&certificateRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/certificates/generate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCertificateHandlerDownloadOwnershipCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &certificateRepoStub{byID: map[string]*models.Certificate{
		"cert-1": {ID: "cert-1", StudentID: "student-1", Status: models.CertificateStatusIssued},
	}}
	handler := newCertificateHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/certificates/cert-1/download", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent})

	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
