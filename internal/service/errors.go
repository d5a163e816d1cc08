package service

import "errors"

// Typed errors for mapping onto HTTP codes in the delivery layer.
var (
	// Validation / domain state.
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrCampaignRunning = errors.New("a campaign run is already active")

	// Missing resources.
	ErrStudentNotFound      = errors.New("student not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrIntegrationNotFound  = errors.New("integration not connected")

	// External dependencies.
	ErrTokenRefresh = errors.New("token refresh failed")
)
