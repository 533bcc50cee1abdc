package attendance

import (
	"time"

	"geoattend-svc/src/internal/geo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is one persisted check-in outcome, accepted or rejected. Rejected
// attempts are retained as evidence of attempted-but-invalid check-ins;
// records are never mutated or deleted.
type Record struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID      string             `json:"sessionId" bson:"session_id"`
	StudentID      string             `json:"studentId" bson:"student_id"`
	StudentName    string             `json:"studentName,omitempty" bson:"student_name,omitempty"`
	CourseID       string             `json:"courseId" bson:"course_id"`
	Status         string             `json:"status" bson:"status"`
	Verified       bool               `json:"verified" bson:"verified"`
	DistanceMeters *float64           `json:"distanceMeters,omitempty" bson:"distance_meters,omitempty"`
	Timestamp      time.Time          `json:"timestamp" bson:"timestamp"`
}

// Record status constants
const (
	StatusPresent                   = "present"
	StatusAbsent                    = "absent"
	StatusRejectedNoLocation        = "rejected_no_location"
	StatusRejectedNoSessionLocation = "rejected_no_session_location"
	StatusRejectedOutOfRange        = "rejected_out_of_range"
)

// OutcomeAlreadyCheckedIn labels the duplicate short-circuit; no record is
// written for it.
const OutcomeAlreadyCheckedIn = "already_checked_in"

// CheckInRequest carries one check-in attempt. Location uses the pointer
// coordinate pair so a half-specified payload counts as location-absent.
type CheckInRequest struct {
	SessionToken string           `json:"sessionToken"`
	StudentID    string           `json:"studentId"`
	StudentName  string           `json:"studentName,omitempty"`
	Location     *geo.Coordinates `json:"location,omitempty"`
}

// CheckInResult is the classified outcome of one attempt. On rejection the
// result still carries the persisted record so callers can surface the
// measured distance and threshold.
type CheckInResult struct {
	OK               bool     `json:"ok"`
	Verified         bool     `json:"verified"`
	AlreadyCheckedIn bool     `json:"alreadyCheckedIn,omitempty"`
	DistanceMeters   *float64 `json:"distanceMeters,omitempty"`
	ThresholdMeters  float64  `json:"thresholdMeters,omitempty"`
	Record           *Record  `json:"record,omitempty"`
}

// FinalizeResult reports how many absence records finalization added.
type FinalizeResult struct {
	OK           bool  `json:"ok"`
	AbsentsAdded int64 `json:"absentsAdded"`
}

// ReportRow is one roster student's state in a session report.
type ReportRow struct {
	StudentID      string     `json:"studentId"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	Verified       bool       `json:"verified"`
	DistanceMeters *float64   `json:"distanceMeters,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// SessionReport joins a session's records with the course roster.
type SessionReport struct {
	SessionID string      `json:"sessionId"`
	CourseID  string      `json:"courseId"`
	Present   int         `json:"present"`
	Absent    int         `json:"absent"`
	Rejected  int         `json:"rejected"`
	Unmarked  int         `json:"unmarked"`
	Rows      []ReportRow `json:"rows"`
}

// StatusUnmarked marks roster students with no record yet (session not
// finalized and no attempt made).
const StatusUnmarked = "unmarked"
