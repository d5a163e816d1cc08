package models

import "time"

type NotificationListResponse struct {
	Success       bool           `json:"success"`
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

type UnreadCountResponse struct {
	Success     bool `json:"success"`
	UnreadCount int  `json:"unread_count"`
}

type GenerateNotificationsResponse struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	Notifications []Notification   `json:"notifications"`
	Stats         []AttendanceStat `json:"stats"`
}

type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
}

type SyncResponse struct {
	Message          string `json:"message"`
	CoursesCount     int    `json:"courses_count"`
	AssignmentsCount int    `json:"assignments_count"`
}

type IntegrationStatusResponse struct {
	Connected  bool       `json:"connected"`
	Platform   string     `json:"platform,omitempty"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
	IsActive   *bool      `json:"is_active,omitempty"`
}

// CampaignSummary is the tally emitted at the end of a weekly campaign run.
type CampaignSummary struct {
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}
