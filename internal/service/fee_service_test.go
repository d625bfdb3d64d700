package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sat-lms-api/internal/models"
	appErrors "github.com/noah-isme/sat-lms-api/pkg/errors"
)

type mockFeeRepo struct {
	fees        map[string]*models.FeeRecord
	activeIDs   []string
	createCalls int
}

func (m *mockFeeRepo) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	var details []models.FeeDetail
	for _, fee := range m.fees {
		details = append(details, models.FeeDetail{FeeRecord: *fee})
	}
	return details, len(details), nil
}

func (m *mockFeeRepo) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	if fee, ok := m.fees[id]; ok {
		copy := *fee
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) HasOverduePending(ctx context.Context, studentID string, now time.Time) (bool, error) {
	for _, fee := range m.fees {
		if fee.StudentID == studentID && fee.Status == models.FeeStatusPending && fee.DueDate.Before(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFeeRepo) Exists(ctx context.Context, studentID string, month, year int) (bool, error) {
	for _, fee := range m.fees {
		if fee.StudentID == studentID && fee.Month == month && fee.Year == year {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFeeRepo) Create(ctx context.Context, fee *models.FeeRecord) error {
	m.createCalls++
	fee.ID = fmt.Sprintf("fee-%d", m.createCalls)
	if m.fees == nil {
		m.fees = make(map[string]*models.FeeRecord)
	}
	copy := *fee
	m.fees[fee.ID] = &copy
	return nil
}

func (m *mockFeeRepo) Update(ctx context.Context, fee *models.FeeRecord) error {
	copy := *fee
	m.fees[fee.ID] = &copy
	return nil
}

func (m *mockFeeRepo) ListActiveStudentIDs(ctx context.Context) ([]string, error) {
	return m.activeIDs, nil
}

type mockFeeEnrollments struct {
	enrollments map[string]*models.Enrollment
	bulkBlocked [][]string
}

func (m *mockFeeEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if enrollment, ok := m.enrollments[id]; ok {
		copy := *enrollment
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeEnrollments) ListByCourse(ctx context.Context, courseID string, activeOnly bool) ([]models.Enrollment, error) {
	var result []models.Enrollment
	for _, enrollment := range m.enrollments {
		if enrollment.CourseID != courseID {
			continue
		}
		if activeOnly && enrollment.Status != models.EnrollmentStatusActive {
			continue
		}
		result = append(result, *enrollment)
	}
	return result, nil
}

func (m *mockFeeEnrollments) SetBlock(ctx context.Context, id string, blocked bool, reason, blockedBy *string, at *time.Time) error {
	enrollment := m.enrollments[id]
	enrollment.AccessBlocked = blocked
	enrollment.BlockedReason = reason
	enrollment.BlockedBy = blockedBy
	enrollment.BlockedAt = at
	return nil
}

func (m *mockFeeEnrollments) BlockByStudents(ctx context.Context, courseID string, studentIDs []string, reason string, blockedBy *string, at time.Time) (int64, error) {
	m.bulkBlocked = append(m.bulkBlocked, studentIDs)
	var affected int64
	for _, enrollment := range m.enrollments {
		if enrollment.CourseID != courseID {
			continue
		}
		for _, studentID := range studentIDs {
			if enrollment.StudentID == studentID && !enrollment.AccessBlocked {
				enrollment.AccessBlocked = true
				enrollment.BlockedReason = &reason
				affected++
			}
		}
	}
	return affected, nil
}

type mockFeeNotifier struct {
	blocked  []string
	reviewed []string
}

func (m *mockFeeNotifier) NotifyAccessBlocked(studentID, reason string) {
	m.blocked = append(m.blocked, studentID)
}

func (m *mockFeeNotifier) NotifyFeeReviewed(fee *models.FeeRecord) {
	m.reviewed = append(m.reviewed, fee.ID)
}

func newFeeFixture() (*mockFeeRepo, *mockFeeEnrollments, *mockFeeNotifier, *FeeService) {
	repo := &mockFeeRepo{fees: make(map[string]*models.FeeRecord), activeIDs: []string{"student-1", "student-2"}}
	enrollments := &mockFeeEnrollments{enrollments: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive},
		"enr-2": {ID: "enr-2", StudentID: "student-2", CourseID: "course-1", Status: models.EnrollmentStatusActive},
	}}
	notifier := &mockFeeNotifier{}
	svc := NewFeeService(repo, enrollments, notifier, FeeConfig{DefaultAmount: 150, DueDay: 10}, validator.New(), zap.NewNop())
	return repo, enrollments, notifier, svc
}

func seedFee(repo *mockFeeRepo, id, studentID string, status models.FeeStatus, dueDate time.Time) *models.FeeRecord {
	fee := &models.FeeRecord{
		ID:        id,
		StudentID: studentID,
		Month:     int(dueDate.Month()),
		Year:      dueDate.Year(),
		Amount:    150,
		Status:    status,
		DueDate:   dueDate,
	}
	repo.fees[id] = fee
	return fee
}

func TestFeeServiceIsDefaulter(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	past := time.Now().UTC().AddDate(0, -1, 0)
	seedFee(repo, "fee-1", "student-1", models.FeeStatusPending, past)

	overdue, err := svc.IsDefaulter(context.Background(), "student-1")
	require.NoError(t, err)
	assert.True(t, overdue)

	overdue, err = svc.IsDefaulter(context.Background(), "student-2")
	require.NoError(t, err)
	assert.False(t, overdue)
}

func TestFeeServiceSubmittedProofIsNotDefault(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	past := time.Now().UTC().AddDate(0, -1, 0)
	seedFee(repo, "fee-1", "student-1", models.FeeStatusSubmitted, past)

	overdue, err := svc.IsDefaulter(context.Background(), "student-1")
	require.NoError(t, err)
	assert.False(t, overdue)
}

func TestFeeServiceFutureDueDateIsNotOverdue(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	future := time.Now().UTC().AddDate(0, 1, 0)
	seedFee(repo, "fee-1", "student-1", models.FeeStatusPending, future)

	overdue, err := svc.IsDefaulter(context.Background(), "student-1")
	require.NoError(t, err)
	assert.False(t, overdue)
}

func TestFeeServiceGenerateMonthlyFees(t *testing.T) {
	repo, _, _, svc := newFeeFixture()

	result, err := svc.GenerateMonthlyFees(context.Background(), GenerateFeesRequest{Month: 3, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)

	for _, fee := range repo.fees {
		assert.Equal(t, models.FeeStatusPending, fee.Status)
		assert.Equal(t, 150.0, fee.Amount)
		assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), fee.DueDate)
	}
}

func TestFeeServiceGenerateSkipsExisting(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	seedFee(repo, "fee-1", "student-1", models.FeeStatusApproved, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC))

	result, err := svc.GenerateMonthlyFees(context.Background(), GenerateFeesRequest{Month: 3, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestFeeServiceGenerateRejectsBadMonth(t *testing.T) {
	_, _, _, svc := newFeeFixture()

	_, err := svc.GenerateMonthlyFees(context.Background(), GenerateFeesRequest{Month: 13, Year: 2026})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFeeServiceSubmitProof(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	seedFee(repo, "fee-1", "student-1", models.FeeStatusPending, time.Now().UTC())

	fee, err := svc.SubmitProof(context.Background(), "fee-1", "student-1", SubmitProofRequest{ProofURL: "https://files.example.com/proof.png"})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusSubmitted, fee.Status)
	require.NotNil(t, fee.ProofURL)
}

func TestFeeServiceSubmitProofOwnershipAndStatus(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	seedFee(repo, "fee-1", "student-1", models.FeeStatusApproved, time.Now().UTC())

	_, err := svc.SubmitProof(context.Background(), "fee-1", "student-2", SubmitProofRequest{ProofURL: "https://files.example.com/proof.png"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.SubmitProof(context.Background(), "fee-1", "student-1", SubmitProofRequest{ProofURL: "https://files.example.com/proof.png"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFeeServiceResubmitAfterRejection(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	fee := seedFee(repo, "fee-1", "student-1", models.FeeStatusRejected, time.Now().UTC())
	reviewer := "admin-1"
	fee.ReviewedBy = &reviewer

	updated, err := svc.SubmitProof(context.Background(), "fee-1", "student-1", SubmitProofRequest{ProofURL: "https://files.example.com/proof2.png"})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusSubmitted, updated.Status)
	assert.Nil(t, updated.ReviewedBy)
	assert.Nil(t, updated.ReviewedAt)
}

func TestFeeServiceReviewApprove(t *testing.T) {
	repo, _, notifier, svc := newFeeFixture()
	seedFee(repo, "fee-1", "student-1", models.FeeStatusSubmitted, time.Now().UTC())

	fee, err := svc.Review(context.Background(), "fee-1", ReviewFeeRequest{Action: "approve"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusApproved, fee.Status)
	require.NotNil(t, fee.PaidAt)
	require.NotNil(t, fee.ReviewedBy)
	assert.Equal(t, "admin-1", *fee.ReviewedBy)
	assert.Equal(t, []string{"fee-1"}, notifier.reviewed)
}

func TestFeeServiceReviewReject(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	seedFee(repo, "fee-1", "student-1", models.FeeStatusSubmitted, time.Now().UTC())

	fee, err := svc.Review(context.Background(), "fee-1", ReviewFeeRequest{Action: "reject", Note: "unreadable receipt"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusRejected, fee.Status)
	assert.Nil(t, fee.PaidAt)
}

func TestFeeServiceReviewRequiresSubmitted(t *testing.T) {
	repo, _, _, svc := newFeeFixture()
	seedFee(repo, "fee-1", "student-1", models.FeeStatusPending, time.Now().UTC())

	_, err := svc.Review(context.Background(), "fee-1", ReviewFeeRequest{Action: "approve"}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFeeServiceBlockAndUnblock(t *testing.T) {
	_, enrollments, notifier, svc := newFeeFixture()

	enrollment, err := svc.BlockAccess(context.Background(), "enr-1", BlockAccessRequest{Reason: "overdue fee payment"}, "admin-1")
	require.NoError(t, err)
	assert.True(t, enrollment.AccessBlocked)
	assert.True(t, enrollments.enrollments["enr-1"].AccessBlocked)
	assert.Equal(t, []string{"student-1"}, notifier.blocked)

	enrollment, err = svc.UnblockAccess(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.False(t, enrollment.AccessBlocked)
	assert.Nil(t, enrollment.BlockedReason)

	_, err = svc.UnblockAccess(context.Background(), "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFeeServiceRepeatedBlockOverwritesReason(t *testing.T) {
	_, enrollments, notifier, svc := newFeeFixture()

	first, err := svc.BlockAccess(context.Background(), "enr-1", BlockAccessRequest{Reason: "overdue fee payment"}, "admin-1")
	require.NoError(t, err)
	require.True(t, first.AccessBlocked)
	firstAt := enrollments.enrollments["enr-1"].BlockedAt

	second, err := svc.BlockAccess(context.Background(), "enr-1", BlockAccessRequest{Reason: "chargeback dispute"}, "admin-2")
	require.NoError(t, err)
	assert.True(t, second.AccessBlocked)
	require.NotNil(t, second.BlockedReason)
	assert.Equal(t, "chargeback dispute", *second.BlockedReason)
	require.NotNil(t, second.BlockedBy)
	assert.Equal(t, "admin-2", *second.BlockedBy)
	require.NotNil(t, enrollments.enrollments["enr-1"].BlockedAt)
	assert.Equal(t, "chargeback dispute", *enrollments.enrollments["enr-1"].BlockedReason)
	assert.NotSame(t, firstAt, enrollments.enrollments["enr-1"].BlockedAt)
	assert.Equal(t, []string{"student-1"}, notifier.blocked)
}

func TestFeeServiceBulkBlockDefaulters(t *testing.T) {
	repo, enrollments, notifier, svc := newFeeFixture()
	past := time.Now().UTC().AddDate(0, -1, 0)
	seedFee(repo, "fee-1", "student-1", models.FeeStatusPending, past)
	seedFee(repo, "fee-2", "student-2", models.FeeStatusSubmitted, past)

	result, err := svc.BulkBlockDefaulters(context.Background(), "course-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, result.Defaulters)
	assert.Equal(t, int64(1), result.BlockedEnrollments)
	assert.True(t, enrollments.enrollments["enr-1"].AccessBlocked)
	assert.False(t, enrollments.enrollments["enr-2"].AccessBlocked)
	assert.Equal(t, []string{"student-1"}, notifier.blocked)
}

func TestFeeServiceBulkBlockLeavesOtherCoursesAlone(t *testing.T) {
	repo, enrollments, _, svc := newFeeFixture()
	enrollments.enrollments["enr-3"] = &models.Enrollment{ID: "enr-3", StudentID: "student-1", CourseID: "course-2", Status: models.EnrollmentStatusActive}
	past := time.Now().UTC().AddDate(0, -1, 0)
	seedFee(repo, "fee-1", "student-1", models.FeeStatusPending, past)

	result, err := svc.BulkBlockDefaulters(context.Background(), "course-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, result.Defaulters)
	assert.Equal(t, int64(1), result.BlockedEnrollments)
	assert.True(t, enrollments.enrollments["enr-1"].AccessBlocked)
	assert.False(t, enrollments.enrollments["enr-3"].AccessBlocked)
}

func TestFeeServiceBulkBlockSweepIsRepeatable(t *testing.T) {
	repo, enrollments, _, svc := newFeeFixture()
	past := time.Now().UTC().AddDate(0, -1, 0)
	seedFee(repo, "fee-1", "student-1", models.FeeStatusPending, past)

	first, err := svc.BulkBlockDefaulters(context.Background(), "course-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.BlockedEnrollments)

	second, err := svc.BulkBlockDefaulters(context.Background(), "course-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, second.Defaulters)
	assert.Equal(t, int64(0), second.BlockedEnrollments)
	assert.True(t, enrollments.enrollments["enr-1"].AccessBlocked)
}
