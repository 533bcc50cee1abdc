package session

import (
	"context"
	"math"
	"strings"
	"time"

	"geoattend-svc/src/internal/config"
	"geoattend-svc/src/internal/geo"
	"geoattend-svc/src/internal/metrics"
	"geoattend-svc/src/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Service interface {
	Create(ctx context.Context, req *CreateSessionRequest) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
}

// Cache is the session read cache. Sessions are immutable after creation,
// so cached copies never go stale.
type Cache interface {
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	CacheSession(ctx context.Context, session *Session) error
}

type sessionService struct {
	repository Repository
	cache      Cache
	cfg        *config.Configuration
}

func NewSessionService(repository Repository, cache Cache, cfg *config.Configuration) Service {
	return &sessionService{
		repository: repository,
		cache:      cache,
		cfg:        cfg,
	}
}

func (s *sessionService) Create(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	if req == nil || strings.TrimSpace(req.CourseID) == "" {
		return nil, models.ErrMissingParams
	}

	now := time.Now().UTC()

	start := now
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}

	expires := now.Add(time.Duration(s.cfg.Attendance.DefaultSessionMinutes) * time.Minute)
	if req.ExpiresAt != nil {
		expires = req.ExpiresAt.UTC()
	}

	threshold := s.cfg.Attendance.DefaultThresholdMeters
	if req.ThresholdMeters != nil && isFinite(*req.ThresholdMeters) {
		threshold = *req.ThresholdMeters
	}

	var location *geo.Point
	if point, ok := req.Location.Point(); ok {
		location = &point
	} else if req.Location != nil {
		logrus.WithField("course_id", req.CourseID).Warn("Ignoring half-specified geofence location")
	}

	session := &Session{
		ID:              uuid.NewString(),
		CourseID:        req.CourseID,
		StartTime:       start,
		ExpiresAt:       expires,
		Location:        location,
		ThresholdMeters: threshold,
		CreatedAt:       now,
	}

	if err := s.repository.Insert(ctx, session); err != nil {
		logrus.WithError(err).WithField("course_id", req.CourseID).Error("Failed to create session")
		return nil, err
	}

	metrics.SessionsCreated.Inc()

	if s.cache != nil {
		if err := s.cache.CacheSession(ctx, session); err != nil {
			logrus.WithError(err).WithField("session_id", session.ID).Warn("Failed to cache new session")
		}
	}

	logrus.WithFields(logrus.Fields{
		"session_id":       session.ID,
		"course_id":        session.CourseID,
		"expires_at":       session.ExpiresAt,
		"threshold_meters": session.ThresholdMeters,
		"has_geofence":     session.Location != nil,
	}).Info("Attendance session created")

	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, models.ErrMissingParams
	}

	if s.cache != nil {
		cached, err := s.cache.GetSession(ctx, sessionID)
		if err == nil && cached != nil {
			logrus.WithField("session_id", sessionID).Debug("Session retrieved from cache")
			return cached, nil
		}
	}

	session, err := s.repository.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheSession(ctx, session); err != nil {
			logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to cache session")
		}
	}

	return session, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
