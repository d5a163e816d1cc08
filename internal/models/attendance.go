package models

import (
	"strings"
	"time"
)

type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// AttendanceRecord is a raw attendance row owned by the attendance-marking
// application. This service only ever reads them.
type AttendanceRecord struct {
	ID        string           `json:"id" db:"id"`
	StudentID string           `json:"student_id" db:"student_id"`
	ClassID   string           `json:"class_id" db:"class_id"`
	Date      time.Time        `json:"date" db:"date"`
	Status    AttendanceStatus `json:"status" db:"status"`
}

type Student struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// ClassSession is one scheduled class row. A subject may span several
// sessions (lecture, lab) that all feed the same attendance aggregate.
type ClassSession struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	SubjectCode string `json:"subject_code" db:"subject_code"`
	SubjectName string `json:"subject_name" db:"subject_name"`
	GroupName   string `json:"group_name" db:"group_name"`
	DayOfWeek   int    `json:"day_of_week" db:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartTime   string `json:"start_time" db:"start_time"`
	EndTime     string `json:"end_time" db:"end_time"`
}

// SubjectKey returns the aggregation key for this session. Sessions without
// an explicit subject code fall back to the first token of the class name.
func (c ClassSession) SubjectKey() SubjectGroup {
	code := c.SubjectCode
	if code == "" {
		if fields := strings.Fields(c.Name); len(fields) > 0 {
			code = fields[0]
		}
	}
	return SubjectGroup{SubjectCode: code, GroupName: c.GroupName}
}

// SubjectName falls back to the class name when no explicit subject name is set.
func (c ClassSession) DisplaySubjectName() string {
	if c.SubjectName != "" {
		return c.SubjectName
	}
	return c.Name
}

// SubjectGroup identifies one attendance aggregate across session rows.
type SubjectGroup struct {
	SubjectCode string `json:"subject_code"`
	GroupName   string `json:"group_name"`
}

// AttendanceStat is the computed per-subject attendance summary.
type AttendanceStat struct {
	SubjectCode string  `json:"subject_code"`
	SubjectName string  `json:"subject_name"`
	GroupName   string  `json:"group_name"`
	TotalDays   int     `json:"total_days"`
	PresentDays int     `json:"present_days"`
	AbsentDays  int     `json:"absent_days"`
	Percentage  float64 `json:"percentage"`

	// Upcoming sessions this week, populated only for the weekly digest.
	UpcomingSessions []ClassSession `json:"upcoming_sessions,omitempty"`
}
