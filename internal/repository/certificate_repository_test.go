package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sat-lms-api/internal/models"
)

func certificateRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "certificate_number", "verification_code", "student_id", "course_id", "enrollment_id",
		"status", "grade", "template", "student_name", "course_title", "file_path",
		"issued_at", "issued_by", "revoked_at", "revoked_by", "revocation_reason", "created_at", "updated_at"}).
		AddRow("cert-1", "CERT-SAT-2026-00001", "CERT-SAT-2026-00001-A1B2C3D4", "student-1", "course-1", nil,
			string(models.CertificateStatusIssued), "pass", "classic", "Ada Lovelace", "Algebra", nil,
			now, nil, nil, nil, nil, now, now)
}

func TestNextSequence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery("INSERT INTO certificate_sequences").
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))

	seq, err := repo.NextSequence(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 7, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindIssuedReturnsNilWhenNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM certificates WHERE student_id").
		WithArgs("student-1", "course-1", models.CertificateStatusIssued).
		WillReturnRows(certificateRows(time.Now()))

	mock.ExpectQuery("SELECT (.+) FROM certificates WHERE student_id").
		WithArgs("student-2", "course-1", models.CertificateStatusIssued).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	certificate, err := repo.FindIssued(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	require.NotNil(t, certificate)
	assert.Equal(t, "CERT-SAT-2026-00001", certificate.CertificateNumber)

	certificate, err = repo.FindIssued(context.Background(), "student-2", "course-1")
	require.NoError(t, err)
	assert.Nil(t, certificate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery("FROM certificates WHERE certificate_number").
		WithArgs("CERT-SAT-2026-00001").
		WillReturnRows(certificateRows(time.Now()))

	certificate, err := repo.FindByCode(context.Background(), "CERT-SAT-2026-00001")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", certificate.StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFilePath(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET file_path = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("cert-1", "2026/CERT-SAT-2026-00001.pdf", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateFilePath(context.Background(), "cert-1", "2026/CERT-SAT-2026-00001.pdf")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
