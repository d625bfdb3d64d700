package models

import "time"

// CertificateStatus represents the credential lifecycle.
type CertificateStatus string

// Possible certificate statuses.
const (
	CertificateStatusIssued  CertificateStatus = "ISSUED"
	CertificateStatusRevoked CertificateStatus = "REVOKED"
)

// Certificate is an issued completion credential. Student name and course
// title are snapshotted at issue time so later edits to users or courses do
// not alter historical certificates. At most one ISSUED certificate exists
// per (student, course); revoked ones remain as history.
type Certificate struct {
	ID                string            `db:"id" json:"id"`
	CertificateNumber string            `db:"certificate_number" json:"certificate_number"`
	VerificationCode  string            `db:"verification_code" json:"verification_code"`
	StudentID         string            `db:"student_id" json:"student_id"`
	CourseID          string            `db:"course_id" json:"course_id"`
	EnrollmentID      *string           `db:"enrollment_id" json:"enrollment_id,omitempty"`
	Status            CertificateStatus `db:"status" json:"status"`
	Grade             string            `db:"grade" json:"grade"`
	Template          string            `db:"template" json:"template"`
	StudentName       string            `db:"student_name" json:"student_name"`
	CourseTitle       string            `db:"course_title" json:"course_title"`
	FilePath          *string           `db:"file_path" json:"-"`
	IssuedAt          time.Time         `db:"issued_at" json:"issued_at"`
	IssuedBy          *string           `db:"issued_by" json:"issued_by,omitempty"`
	RevokedAt         *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedBy         *string           `db:"revoked_by" json:"revoked_by,omitempty"`
	RevocationReason  *string           `db:"revocation_reason" json:"revocation_reason,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// CertificateFilter provides filters for listing certificates.
type CertificateFilter struct {
	StudentID string
	CourseID  string
	Status    CertificateStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CertificatePublic is the subset of certificate fields exposed on the public
// verification endpoint.
type CertificatePublic struct {
	CertificateNumber string    `json:"certificate_number"`
	StudentName       string    `json:"student_name"`
	CourseTitle       string    `json:"course_title"`
	Grade             string    `json:"grade"`
	IssuedAt          time.Time `json:"issued_at"`
}

// CertificateVerification is the public verification response.
type CertificateVerification struct {
	Valid            bool               `json:"valid"`
	Status           string             `json:"status"`
	RevocationReason *string            `json:"revocation_reason,omitempty"`
	Data             *CertificatePublic `json:"data,omitempty"`
}
