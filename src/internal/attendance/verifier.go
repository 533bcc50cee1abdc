package attendance

import (
	"context"
	"errors"
	"time"

	"geoattend-svc/src/internal/geo"
	"geoattend-svc/src/internal/metrics"
	"geoattend-svc/src/internal/models"
	"geoattend-svc/src/internal/session"

	"github.com/sirupsen/logrus"
)

// SessionSource resolves a session token to its session document.
type SessionSource interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

// EventPublisher publishes persisted check-in outcomes for audit consumers.
// Publishing is best-effort and never fails the request.
type EventPublisher interface {
	PublishCheckinEvent(event models.CheckinEvent) error
}

// Verifier classifies check-in attempts. Classification is a strict
// sequential pipeline; the first failing step determines the outcome, and
// every outcome past the duplicate check is durably recorded.
type Verifier interface {
	CheckIn(ctx context.Context, req *CheckInRequest) (*CheckInResult, error)
}

type verifier struct {
	records  Repository
	sessions SessionSource
	events   EventPublisher
	now      func() time.Time
}

func NewVerifier(records Repository, sessions SessionSource, events EventPublisher) Verifier {
	return &verifier{
		records:  records,
		sessions: sessions,
		events:   events,
		now:      time.Now,
	}
}

func (v *verifier) CheckIn(ctx context.Context, req *CheckInRequest) (*CheckInResult, error) {
	if req == nil || req.SessionToken == "" || req.StudentID == "" {
		return nil, models.ErrMissingParams
	}

	sess, err := v.sessions.Get(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}

	now := v.now().UTC()
	if sess.Expired(now) {
		logrus.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"student_id": req.StudentID,
			"expires_at": sess.ExpiresAt,
		}).Info("Check-in on expired session")
		return nil, models.ErrSessionExpired
	}

	existing, err := v.records.FindPresent(ctx, sess.ID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.CheckinAttempts.WithLabelValues(OutcomeAlreadyCheckedIn).Inc()
		logrus.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"student_id": req.StudentID,
		}).Info("Duplicate check-in attempt")
		return &CheckInResult{
			OK:               true,
			Verified:         existing.Verified,
			AlreadyCheckedIn: true,
			DistanceMeters:   existing.DistanceMeters,
			Record:           existing,
		}, nil
	}

	point, hasLocation := req.Location.Point()
	if !hasLocation {
		record, err := v.persist(ctx, sess, req, StatusRejectedNoLocation, false, nil)
		if err != nil {
			return nil, err
		}
		return &CheckInResult{Record: record}, models.ErrLocationRequired
	}

	center, ok := sess.Geofence()
	if !ok {
		record, err := v.persist(ctx, sess, req, StatusRejectedNoSessionLocation, false, nil)
		if err != nil {
			return nil, err
		}
		return &CheckInResult{Record: record}, models.ErrSessionMissingGeofence
	}

	distance := geo.DistanceMeters(point, center)
	metrics.CheckinDistance.Observe(distance)

	if distance > sess.ThresholdMeters {
		record, err := v.persist(ctx, sess, req, StatusRejectedOutOfRange, false, &distance)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"session_id":       sess.ID,
			"student_id":       req.StudentID,
			"distance_meters":  distance,
			"threshold_meters": sess.ThresholdMeters,
		}).Warn("Check-in rejected out of range")
		return &CheckInResult{
			DistanceMeters:  &distance,
			ThresholdMeters: sess.ThresholdMeters,
			Record:          record,
		}, models.ErrOutOfRange
	}

	record, err := v.persist(ctx, sess, req, StatusPresent, true, &distance)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateCheckin) {
			// A concurrent attempt won the race; the unique index kept the
			// at-most-one-present invariant. Return the winning record so
			// both duplicate outcomes are shaped alike.
			metrics.CheckinAttempts.WithLabelValues(OutcomeAlreadyCheckedIn).Inc()
			winner, findErr := v.records.FindPresent(ctx, sess.ID, req.StudentID)
			if findErr != nil || winner == nil {
				return &CheckInResult{OK: true, Verified: true, AlreadyCheckedIn: true}, nil
			}
			return &CheckInResult{
				OK:               true,
				Verified:         winner.Verified,
				AlreadyCheckedIn: true,
				DistanceMeters:   winner.DistanceMeters,
				Record:           winner,
			}, nil
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id":      sess.ID,
		"student_id":      req.StudentID,
		"distance_meters": distance,
	}).Info("Check-in verified")

	return &CheckInResult{
		OK:             true,
		Verified:       true,
		DistanceMeters: &distance,
		Record:         record,
	}, nil
}

func (v *verifier) persist(ctx context.Context, sess *session.Session, req *CheckInRequest, status string, verified bool, distance *float64) (*Record, error) {
	record := &Record{
		SessionID:      sess.ID,
		StudentID:      req.StudentID,
		StudentName:    req.StudentName,
		CourseID:       sess.CourseID,
		Status:         status,
		Verified:       verified,
		DistanceMeters: distance,
		Timestamp:      v.now().UTC(),
	}

	if err := v.records.Insert(ctx, record); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			return nil, models.ErrDuplicateCheckin
		}
		return nil, err
	}

	metrics.CheckinAttempts.WithLabelValues(status).Inc()
	v.publish(sess, record)

	return record, nil
}

func (v *verifier) publish(sess *session.Session, record *Record) {
	if v.events == nil {
		return
	}
	event := models.CheckinEvent{
		SessionID:      sess.ID,
		CourseID:       sess.CourseID,
		StudentID:      record.StudentID,
		Status:         record.Status,
		Verified:       record.Verified,
		DistanceMeters: record.DistanceMeters,
		ServiceName:    models.ServiceCheckinVerifier,
		Timestamp:      record.Timestamp,
	}
	if err := v.events.PublishCheckinEvent(event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sess.ID,
			"student_id": record.StudentID,
		}).Warn("Failed to publish checkin event")
	}
}
