package models

import (
	"time"
)

// RiskLevel is the attendance risk tier derived from a percentage.
type RiskLevel string

const (
	RiskCritical  RiskLevel = "critical"
	RiskWarning   RiskLevel = "warning"
	RiskGood      RiskLevel = "good"
	RiskExcellent RiskLevel = "excellent"
)

func (l RiskLevel) String() string {
	return string(l)
}

// Priority returns the escalation priority of the tier, 1 being most severe.
func (l RiskLevel) Priority() int {
	switch l {
	case RiskCritical:
		return 1
	case RiskWarning:
		return 2
	case RiskGood:
		return 3
	case RiskExcellent:
		return 4
	default:
		return 4
	}
}

// Escalated reports whether the tier warrants an email on its own.
func (l RiskLevel) Escalated() bool {
	return l == RiskCritical || l == RiskWarning
}

type Notification struct {
	ID                   string     `json:"id" db:"id"`
	StudentID            string     `json:"student_id" db:"student_id"`
	SubjectCode          string     `json:"subject_code" db:"subject_code"`
	SubjectName          string     `json:"subject_name" db:"subject_name"`
	Message              string     `json:"message" db:"message"`
	Type                 RiskLevel  `json:"type" db:"type"`
	AttendancePercentage float64    `json:"attendance_percentage" db:"attendance_percentage"`
	IsRead               bool       `json:"is_read" db:"is_read"`
	ReadAt               *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
}
