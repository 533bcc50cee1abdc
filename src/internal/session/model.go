package session

import (
	"time"

	"geoattend-svc/src/internal/geo"
)

// Session is one geofenced attendance window. The store-assigned identifier
// doubles as the opaque token handed to check-in clients; sessions are
// immutable after creation and expire lazily at check-in time.
type Session struct {
	ID              string     `json:"sessionId" bson:"_id"`
	CourseID        string     `json:"courseId" bson:"course_id"`
	StartTime       time.Time  `json:"startTime" bson:"start_time"`
	ExpiresAt       time.Time  `json:"expiresAt" bson:"expires_at"`
	Location        *geo.Point `json:"location,omitempty" bson:"location,omitempty"`
	ThresholdMeters float64    `json:"thresholdMeters" bson:"threshold_meters"`
	CreatedAt       time.Time  `json:"createdAt" bson:"created_at"`
}

// Expired reports whether the window has passed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Geofence returns the geofence center when the session carries a valid one.
func (s *Session) Geofence() (geo.Point, bool) {
	if s.Location == nil || !s.Location.Valid() {
		return geo.Point{}, false
	}
	return *s.Location, true
}

// CreateSessionRequest carries the session creation parameters; everything
// but CourseID is optional. A geofence with a missing coordinate is treated
// as absent rather than stored half-specified.
type CreateSessionRequest struct {
	CourseID        string           `json:"courseId"`
	StartTime       *time.Time       `json:"startTs,omitempty"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
	Location        *geo.Coordinates `json:"location,omitempty"`
	ThresholdMeters *float64         `json:"thresholdMeters,omitempty"`
}

// CreateSessionResponse is returned to the operator; Token is the value
// embedded in whatever the client-facing distribution channel is.
type CreateSessionResponse struct {
	SessionID string   `json:"sessionId"`
	Token     string   `json:"token"`
	Session   *Session `json:"session"`
}
