package models

import "time"

// ProgressStatus represents per-class watch state.
type ProgressStatus string

// Possible progress statuses.
const (
	ProgressStatusNotStarted ProgressStatus = "NOT_STARTED"
	ProgressStatusInProgress ProgressStatus = "IN_PROGRESS"
	ProgressStatusCompleted  ProgressStatus = "COMPLETED"
)

// ProgressRecord tracks a student's watch state for a single class. One row
// exists per (student, class); the transition to COMPLETED happens exactly
// once and is never reverted.
type ProgressRecord struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	ClassID        string         `db:"class_id" json:"class_id"`
	CourseID       string         `db:"course_id" json:"course_id"`
	Status         ProgressStatus `db:"status" json:"status"`
	WatchProgress  float64        `db:"watch_progress" json:"watch_progress"`
	LastPosition   int            `db:"last_position" json:"last_position"`
	TotalWatchTime int            `db:"total_watch_time" json:"total_watch_time"`
	AccessCount    int            `db:"access_count" json:"access_count"`
	StartedAt      *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
