package models

import "time"

// CheckinEvent is published to the attendance exchange for every persisted
// check-in outcome. Rejected outcomes feed the proxy-fraud audit consumers.
type CheckinEvent struct {
	SessionID      string   `json:"session_id"`
	CourseID       string   `json:"course_id"`
	StudentID      string   `json:"student_id"`
	Status         string   `json:"status"`
	Verified       bool     `json:"verified"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	ServiceName    string   `json:"service_name"`

	Timestamp time.Time `json:"timestamp"`
}

// Event status/service constants
const (
	ServiceCheckinVerifier   = "attendance.verifier"
	ServiceFinalizeProcessor = "attendance.finalizer"
)
