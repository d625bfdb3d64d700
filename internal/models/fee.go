package models

import "time"

// FeeStatus represents the lifecycle of a monthly fee record.
type FeeStatus string

// Possible fee statuses.
const (
	FeeStatusPending   FeeStatus = "PENDING"
	FeeStatusSubmitted FeeStatus = "SUBMITTED"
	FeeStatusApproved  FeeStatus = "APPROVED"
	FeeStatusRejected  FeeStatus = "REJECTED"
)

// FeeRecord is a monthly fee owed by a student. One row exists per
// (student, month, year). A student with any PENDING record past its due
// date is a defaulter.
type FeeRecord struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	Month      int        `db:"month" json:"month"`
	Year       int        `db:"year" json:"year"`
	Amount     float64    `db:"amount" json:"amount"`
	Status     FeeStatus  `db:"status" json:"status"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	PaidAt     *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ProofURL   *string    `db:"proof_url" json:"proof_url,omitempty"`
	ProofNote  *string    `db:"proof_note" json:"proof_note,omitempty"`
	ReviewedBy *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeDetail enriches FeeRecord with student info for admin listings.
type FeeDetail struct {
	FeeRecord
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// FeeFilter provides filters for listing fee records.
type FeeFilter struct {
	StudentID string
	Status    FeeStatus
	Month     int
	Year      int
	Overdue   *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
