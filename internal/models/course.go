package models

import "time"

// Course represents a published course that students enroll into.
type Course struct {
	ID                  string    `db:"id" json:"id"`
	Title               string    `db:"title" json:"title"`
	Slug                string    `db:"slug" json:"slug"`
	Description         string    `db:"description" json:"description"`
	OwnerID             string    `db:"owner_id" json:"owner_id"`
	IsPublished         bool      `db:"is_published" json:"is_published"`
	CertificatesEnabled bool      `db:"certificates_enabled" json:"certificates_enabled"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail extends Course with owner information for responses.
type CourseDetail struct {
	Course
	OwnerName string `db:"owner_name" json:"owner_name"`
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	OwnerID   string
	Published *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
