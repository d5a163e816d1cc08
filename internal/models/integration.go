package models

import (
	"time"
)

const PlatformGoogleClassroom = "google_classroom"

type SyncStatus string

const (
	SyncStatusStarted SyncStatus = "started"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// Integration holds one user's connection to an external course platform.
// Disconnecting flips IsActive off but keeps the row for history.
type Integration struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Platform     string    `json:"platform" db:"platform"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry" db:"token_expiry"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	LastSynced   *time.Time `json:"last_synced,omitempty" db:"last_synced"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SyncLog records one sync attempt. Rows only ever transition
// started -> success|failed.
type SyncLog struct {
	ID            string     `json:"id" db:"id"`
	IntegrationID string     `json:"integration_id" db:"integration_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Platform      string     `json:"platform" db:"platform"`
	SyncStatus    SyncStatus `json:"sync_status" db:"sync_status"`
	ItemsSynced   int        `json:"items_synced" db:"items_synced"`
	ErrorMessage  *string    `json:"error_message,omitempty" db:"error_message"`
	SyncStarted   time.Time  `json:"sync_started" db:"sync_started"`
	SyncCompleted *time.Time `json:"sync_completed,omitempty" db:"sync_completed"`
}

// ExternalCourse is an upserted copy of a course from the external platform,
// keyed by (user_id, source, external_id).
type ExternalCourse struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Source      string    `json:"source" db:"source"`
	ExternalID  string    `json:"external_id" db:"external_id"`
	Name        string    `json:"name" db:"name"`
	Section     string    `json:"section" db:"section"`
	Description string    `json:"description" db:"description"`
	Link        string    `json:"link" db:"link"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type ExternalAssignment struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Source      string     `json:"source" db:"source"`
	ExternalID  string     `json:"external_id" db:"external_id"`
	CourseID    string     `json:"course_id" db:"course_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	MaxPoints   float64    `json:"max_points" db:"max_points"`
	Link        string     `json:"link" db:"link"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// SyncResult summarises one integration's sync run.
type SyncResult struct {
	CoursesCount     int `json:"courses_count"`
	AssignmentsCount int `json:"assignments_count"`
	ItemsSynced      int `json:"items_synced"`
}

// SyncAllSummary summarises a batch sync across integrations.
type SyncAllSummary struct {
	Total       int `json:"total"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	ItemsSynced int `json:"items_synced"`
}
