package session

import (
	"context"
	"math"
	"testing"
	"time"

	"geoattend-svc/src/internal/config"
	"geoattend-svc/src/internal/geo"
	"geoattend-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	inserted []*Session
	byID     map[string]*Session
}

func (f *fakeRepository) GetByID(_ context.Context, sessionID string) (*Session, error) {
	if s, ok := f.byID[sessionID]; ok {
		return s, nil
	}
	return nil, models.ErrSessionNotFound
}

func (f *fakeRepository) Insert(_ context.Context, s *Session) error {
	f.inserted = append(f.inserted, s)
	if f.byID == nil {
		f.byID = map[string]*Session{}
	}
	f.byID[s.ID] = s
	return nil
}

type fakeCache struct {
	sessions map[string]*Session
}

func (f *fakeCache) GetSession(_ context.Context, sessionID string) (*Session, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeCache) CacheSession(_ context.Context, s *Session) error {
	if f.sessions == nil {
		f.sessions = map[string]*Session{}
	}
	f.sessions[s.ID] = s
	return nil
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Attendance: config.AttendanceSettings{
			DefaultThresholdMeters: 100,
			DefaultSessionMinutes:  15,
		},
	}
}

func TestCreateSessionRequiresCourseID(t *testing.T) {
	svc := NewSessionService(&fakeRepository{}, &fakeCache{}, testConfig())

	tests := []struct {
		name string
		req  *CreateSessionRequest
	}{
		{"nil request", nil},
		{"empty course", &CreateSessionRequest{CourseID: ""}},
		{"blank course", &CreateSessionRequest{CourseID: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, models.ErrMissingParams)
		})
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewSessionService(repo, &fakeCache{}, testConfig())

	before := time.Now().UTC()
	sess, err := svc.Create(context.Background(), &CreateSessionRequest{CourseID: "CS101"})
	after := time.Now().UTC()

	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "CS101", sess.CourseID)
	assert.Nil(t, sess.Location)
	assert.Equal(t, 100.0, sess.ThresholdMeters)

	// Expiry defaults to creation time + 15 minutes (900,000 ms).
	assert.Equal(t, 15*time.Minute, sess.ExpiresAt.Sub(sess.StartTime))
	assert.False(t, sess.StartTime.Before(before))
	assert.False(t, sess.StartTime.After(after))
}

func TestCreateSessionUniqueIdentifiers(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewSessionService(repo, &fakeCache{}, testConfig())

	a, err := svc.Create(context.Background(), &CreateSessionRequest{CourseID: "CS101"})
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), &CreateSessionRequest{CourseID: "CS101"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateSessionExplicitValues(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewSessionService(repo, &fakeCache{}, testConfig())

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	expires := start.Add(45 * time.Minute)
	threshold := 250.0
	lat, lon := 12.9716, 77.5946
	location := &geo.Coordinates{Latitude: &lat, Longitude: &lon}

	sess, err := svc.Create(context.Background(), &CreateSessionRequest{
		CourseID:        "CS101",
		StartTime:       &start,
		ExpiresAt:       &expires,
		Location:        location,
		ThresholdMeters: &threshold,
	})

	require.NoError(t, err)
	assert.Equal(t, start, sess.StartTime)
	assert.Equal(t, expires, sess.ExpiresAt)
	assert.Equal(t, 250.0, sess.ThresholdMeters)
	require.NotNil(t, sess.Location)
	assert.Equal(t, 12.9716, sess.Location.Latitude)
}

func TestCreateSessionIgnoresHalfSpecifiedGeofence(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewSessionService(repo, &fakeCache{}, testConfig())

	lat := 12.9716
	sess, err := svc.Create(context.Background(), &CreateSessionRequest{
		CourseID: "CS101",
		Location: &geo.Coordinates{Latitude: &lat},
	})

	require.NoError(t, err)
	assert.Nil(t, sess.Location)
}

func TestCreateSessionNonFiniteThresholdFallsBack(t *testing.T) {
	svc := NewSessionService(&fakeRepository{}, &fakeCache{}, testConfig())

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		threshold := bad
		sess, err := svc.Create(context.Background(), &CreateSessionRequest{
			CourseID:        "CS101",
			ThresholdMeters: &threshold,
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, sess.ThresholdMeters)
	}
}

func TestGetSessionUsesCache(t *testing.T) {
	cached := &Session{ID: "sess-1", CourseID: "CS101"}
	cache := &fakeCache{sessions: map[string]*Session{"sess-1": cached}}
	// The repository would answer not-found; the cache hit must win.
	svc := NewSessionService(&fakeRepository{}, cache, testConfig())

	sess, err := svc.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, cached, sess)
}

func TestGetSessionFallsBackToRepository(t *testing.T) {
	stored := &Session{ID: "sess-2", CourseID: "CS101"}
	repo := &fakeRepository{byID: map[string]*Session{"sess-2": stored}}
	cache := &fakeCache{}
	svc := NewSessionService(repo, cache, testConfig())

	sess, err := svc.Get(context.Background(), "sess-2")
	require.NoError(t, err)
	assert.Equal(t, stored, sess)

	// Fallback fills the cache.
	assert.Equal(t, stored, cache.sessions["sess-2"])
}

func TestGetSessionNotFound(t *testing.T) {
	svc := NewSessionService(&fakeRepository{}, &fakeCache{}, testConfig())

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSessionExpired(t *testing.T) {
	now := time.Now().UTC()
	sess := &Session{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, sess.Expired(now))
	assert.False(t, sess.Expired(now.Add(time.Minute))) // boundary: not yet past
	assert.True(t, sess.Expired(now.Add(time.Minute+time.Second)))

	open := &Session{}
	assert.False(t, open.Expired(now))
}
