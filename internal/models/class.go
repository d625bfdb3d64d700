package models

import "time"

// ClassRecord represents a single video class within a course.
type ClassRecord struct {
	ID              string     `db:"id" json:"id"`
	CourseID        string     `db:"course_id" json:"course_id"`
	Title           string     `db:"title" json:"title"`
	Section         string     `db:"section" json:"section"`
	Position        int        `db:"position" json:"position"`
	IsLocked        bool       `db:"is_locked" json:"is_locked"`
	IsPublished     bool       `db:"is_published" json:"is_published"`
	IsPreview       bool       `db:"is_preview" json:"is_preview"`
	UnlockAt        *time.Time `db:"unlock_at" json:"unlock_at,omitempty"`
	VideoURL        string     `db:"video_url" json:"video_url"`
	DurationSeconds int        `db:"duration_seconds" json:"duration_seconds"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ClassSibling carries the minimal fields needed for prev/next navigation.
type ClassSibling struct {
	ID        string `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	Section   string `db:"section" json:"section"`
	Position  int    `db:"position" json:"position"`
	IsPreview bool   `db:"is_preview" json:"is_preview"`
	IsLocked  bool   `db:"is_locked" json:"is_locked"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	CourseID  string
	Published *bool
	Section   string
	Page      int
	PageSize  int
}

// OverrideState enumerates per-student class access overrides. Absence of an
// override row means the class inherits its global lock flag.
type OverrideState string

const (
	OverrideUnlocked OverrideState = "UNLOCKED"
	OverrideLocked   OverrideState = "LOCKED"
)

// ClassOverride is a per-enrollment exception to a class's global lock flag.
// One row per (enrollment, class); the state column makes lock and unlock
// mutually exclusive by construction.
type ClassOverride struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	ClassID      string        `db:"class_id" json:"class_id"`
	State        OverrideState `db:"state" json:"state"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// OverrideSets groups override class IDs by state for API responses.
type OverrideSets struct {
	LockedClasses   []string `json:"locked_classes"`
	UnlockedClasses []string `json:"unlocked_classes"`
}
