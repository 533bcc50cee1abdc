package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"geoattend-svc/src/internal/config"
	"geoattend-svc/src/internal/models"
	"geoattend-svc/src/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Service interface {
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
	CacheSession(ctx context.Context, session *session.Session) error
}

type cacheService struct {
	client *redis.Client
	cfg    *config.CacheConfig
}

func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client: client,
		cfg:    &cfg.Cache}
}

func (c *cacheService) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	key := c.cfg.SessionKeyPrefix + sessionID

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("session_id", sessionID).Debug("Session not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to get session from cache")
		return nil, models.ErrRedisGet
	}

	var s session.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to unmarshal session from cache")
		return nil, models.ErrRedisGet
	}

	logrus.WithField("session_id", sessionID).Debug("Session retrieved from cache successfully")
	return &s, nil
}

func (c *cacheService) CacheSession(ctx context.Context, s *session.Session) error {
	key := c.cfg.SessionKeyPrefix + s.ID

	data, err := json.Marshal(s)
	if err != nil {
		logrus.WithError(err).WithField("session_id", s.ID).Error("Failed to marshal session for cache")
		return models.ErrRedisSet
	}

	// Bound the cache entry by the session window plus a grace period; an
	// expired session still has to be resolvable so the verifier can answer
	// session_expired instead of invalid_session.
	grace := time.Duration(c.cfg.SessionExpirationMinutes) * time.Minute
	expiration := time.Until(s.ExpiresAt.Add(grace))
	if expiration <= 0 {
		logrus.WithField("session_id", s.ID).Debug("Session window long past, not caching")
		return nil
	}

	err = c.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		logrus.WithError(err).WithField("session_id", s.ID).Error("Failed to cache session")
		return models.ErrRedisSet
	}

	logrus.WithField("session_id", s.ID).Debug("Session cached successfully")
	return nil
}
