package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusExpired   EnrollmentStatus = "EXPIRED"
)

// EnrollmentType records how the student was granted access.
type EnrollmentType string

// Possible enrollment types.
const (
	EnrollmentTypeManual      EnrollmentType = "MANUAL"
	EnrollmentTypePaid        EnrollmentType = "PAID"
	EnrollmentTypeScholarship EnrollmentType = "SCHOLARSHIP"
)

// Enrollment links a student to a course and carries progress and access state.
// At most one enrollment exists per (student, course).
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	Type      EnrollmentType   `db:"enrollment_type" json:"enrollment_type"`

	AccessBlocked bool       `db:"access_blocked" json:"access_blocked"`
	BlockedReason *string    `db:"blocked_reason" json:"blocked_reason,omitempty"`
	BlockedAt     *time.Time `db:"blocked_at" json:"blocked_at,omitempty"`
	BlockedBy     *string    `db:"blocked_by" json:"blocked_by,omitempty"`

	CompletedClasses  int        `db:"completed_classes" json:"completed_classes"`
	TotalClasses      int        `db:"total_classes" json:"total_classes"`
	Percentage        int        `db:"percentage" json:"percentage"`
	LastAccessedClass *string    `db:"last_accessed_class" json:"last_accessed_class,omitempty"`
	LastAccessedAt    *time.Time `db:"last_accessed_at" json:"last_accessed_at,omitempty"`

	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CertificateIssued bool       `db:"certificate_issued" json:"certificate_issued"`
	CertificateID     *string    `db:"certificate_id" json:"certificate_id,omitempty"`

	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	CourseTitle  string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Blocked   *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
