package models

// AttendanceMarkedEvent is published by the attendance-marking application
// whenever a student's attendance is recorded. Consuming it keeps
// notification generation off the marking request path.
type AttendanceMarkedEvent struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}
