package handler

import (
	"context"
	"database/sql"
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
)

type feeRepoStub struct {
	lastFilter models.FeeFilter
}

func (s *feeRepoStub) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	s.lastFilter = filter
	return []models.FeeDetail{}, 0, nil
}

func (s *feeRepoStub) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	return nil, sql.ErrNoRows
}

func (s *feeRepoStub) HasOverduePending(ctx context.Context, studentID string, now time.Time) (bool, error) {
	return false, nil
}

func (s *feeRepoStub) Exists(ctx context.Context, studentID string, month, year int) (bool, error) {
	return false, nil
}

func (s *feeRepoStub) Create(ctx context.Context, fee *models.FeeRecord) error { return nil }

func (s *feeRepoStub) Update(ctx context.Context, fee *models.FeeRecord) error { return nil }

func (s *feeRepoStub) ListActiveStudentIDs(ctx context.Context) ([]string, error) { return nil, nil }

func newFeeHandler(repo *feeRepoStub) *FeeHandler {
	svc := service.NewFeeService(repo, nil, nil, service.FeeConfig{DefaultAmount: 100}, nil, nil)
	return NewFeeHandler(svc)
}

func TestFeeHandlerListScopesStudents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &feeRepoStub{}
	handler := newFeeHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/fees?student_id=student-9", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", repo.lastFilter.StudentID)
}

func TestFeeHandlerListKeepsAdminFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &feeRepoStub{}
	handler := newFeeHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/fees?student_id=student-9&overdue=true", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-9", repo.lastFilter.StudentID)
	require.NotNil(t, repo.lastFilter.Overdue)
	assert.True(t, *repo.lastFilter.Overdue)
}

func TestFeeHandlerListRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFeeHandler(&feeRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/fees", nil)
	c.Request = req

	handler.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
