package attendance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"geoattend-svc/src/internal/geo"
	"geoattend-svc/src/internal/models"
	"geoattend-svc/src/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	campusCenter   = geo.Point{Latitude: 12.9716, Longitude: 77.5946}
	remoteLocation = geo.Point{Latitude: 12.9800, Longitude: 77.6000}
)

func coords(p geo.Point) *geo.Coordinates {
	lat, lon := p.Latitude, p.Longitude
	return &geo.Coordinates{Latitude: &lat, Longitude: &lon}
}

type fakeRecords struct {
	records   []*Record
	insertErr error
	// racedRecord simulates a concurrent writer: it becomes visible to
	// FindPresent only once an insert has been attempted.
	racedRecord *Record
	insertTried bool
}

func (f *fakeRecords) FindPresent(_ context.Context, sessionID, studentID string) (*Record, error) {
	for _, r := range f.records {
		if r.SessionID == sessionID && r.StudentID == studentID && r.Status == StatusPresent {
			return r, nil
		}
	}
	if f.insertTried && f.racedRecord != nil &&
		f.racedRecord.SessionID == sessionID && f.racedRecord.StudentID == studentID {
		return f.racedRecord, nil
	}
	return nil, nil
}

func (f *fakeRecords) Insert(_ context.Context, record *Record) error {
	f.insertTried = true
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecords) ListBySession(_ context.Context, sessionID string) ([]*Record, error) {
	var out []*Record
	for _, r := range f.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) BulkUpsertAbsences(_ context.Context, records []*Record) (int64, error) {
	var added int64
	for _, record := range records {
		if f.hasAbsent(record.SessionID, record.StudentID) {
			continue
		}
		f.records = append(f.records, record)
		added++
	}
	return added, nil
}

func (f *fakeRecords) hasAbsent(sessionID, studentID string) bool {
	for _, r := range f.records {
		if r.SessionID == sessionID && r.StudentID == studentID && r.Status == StatusAbsent {
			return true
		}
	}
	return false
}

func (f *fakeRecords) EnsureIndexes(_ context.Context) error { return nil }

type fakeSessions struct {
	sessions map[string]*session.Session
}

func (f *fakeSessions) Get(_ context.Context, sessionID string) (*session.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

type fakeEvents struct {
	events []models.CheckinEvent
}

func (f *fakeEvents) PublishCheckinEvent(event models.CheckinEvent) error {
	f.events = append(f.events, event)
	return nil
}

func openSession(id string, location *geo.Point, threshold float64) *session.Session {
	now := time.Now().UTC()
	return &session.Session{
		ID:              id,
		CourseID:        "CS101",
		StartTime:       now.Add(-time.Minute),
		ExpiresAt:       now.Add(15 * time.Minute),
		Location:        location,
		ThresholdMeters: threshold,
		CreatedAt:       now,
	}
}

func newTestVerifier(records *fakeRecords, sessions *fakeSessions, events *fakeEvents) Verifier {
	return NewVerifier(records, sessions, events)
}

func TestCheckInMissingParams(t *testing.T) {
	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{}, &fakeEvents{})

	tests := []struct {
		name string
		req  *CheckInRequest
	}{
		{"nil request", nil},
		{"missing token", &CheckInRequest{StudentID: "s1"}},
		{"missing student", &CheckInRequest{SessionToken: "tok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.CheckIn(context.Background(), tt.req)
			assert.ErrorIs(t, err, models.ErrMissingParams)
			assert.Nil(t, result)
			assert.Empty(t, records.records)
		})
	}
}

func TestCheckInUnknownSession(t *testing.T) {
	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{}}, &fakeEvents{})

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: "unknown",
		StudentID:    "s1",
		Location:     coords(campusCenter),
	})

	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	assert.Nil(t, result)
	assert.Empty(t, records.records)
}

func TestCheckInExpiredSession(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	sess.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(campusCenter),
	})

	assert.ErrorIs(t, err, models.ErrSessionExpired)
	assert.Nil(t, result)
	assert.Empty(t, records.records)
}

func TestCheckInWithoutLocationIsRecorded(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	records := &fakeRecords{}
	events := &fakeEvents{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, events)

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		StudentName:  "Asha",
	})

	assert.ErrorIs(t, err, models.ErrLocationRequired)
	require.NotNil(t, result)
	require.NotNil(t, result.Record)
	assert.Equal(t, StatusRejectedNoLocation, result.Record.Status)
	assert.False(t, result.Record.Verified)
	assert.Nil(t, result.Record.DistanceMeters)

	require.Len(t, records.records, 1)
	require.Len(t, events.events, 1)
	assert.Equal(t, StatusRejectedNoLocation, events.events[0].Status)
}

func TestCheckInHalfSpecifiedLocationIsRejectedAsMissing(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	// A client sending only one coordinate must not be measured against
	// the zero meridian.
	payload := `{"sessionToken":"sess-1","studentId":"s1","location":{"latitude":12.9716}}`
	var req CheckInRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	result, err := v.CheckIn(context.Background(), &req)

	assert.ErrorIs(t, err, models.ErrLocationRequired)
	require.NotNil(t, result)
	require.NotNil(t, result.Record)
	assert.Equal(t, StatusRejectedNoLocation, result.Record.Status)
	assert.Nil(t, result.Record.DistanceMeters)
}

func TestCheckInSessionWithoutGeofenceIsRecorded(t *testing.T) {
	sess := openSession("sess-1", nil, 100)
	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(remoteLocation),
	})

	assert.ErrorIs(t, err, models.ErrSessionMissingGeofence)
	require.NotNil(t, result)
	require.NotNil(t, result.Record)
	assert.Equal(t, StatusRejectedNoSessionLocation, result.Record.Status)
	assert.False(t, result.Record.Verified)
	require.Len(t, records.records, 1)
}

func TestCheckInOutOfRange(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	records := &fakeRecords{}
	events := &fakeEvents{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, events)

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(remoteLocation),
	})

	assert.ErrorIs(t, err, models.ErrOutOfRange)
	require.NotNil(t, result)
	require.NotNil(t, result.DistanceMeters)
	assert.Greater(t, *result.DistanceMeters, 1000.0)
	assert.Equal(t, 100.0, result.ThresholdMeters)

	require.NotNil(t, result.Record)
	assert.Equal(t, StatusRejectedOutOfRange, result.Record.Status)
	assert.False(t, result.Record.Verified)
	require.NotNil(t, result.Record.DistanceMeters)

	require.Len(t, events.events, 1)
	assert.Equal(t, StatusRejectedOutOfRange, events.events[0].Status)
}

func TestCheckInAccepted(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		StudentName:  "Asha",
		Location:     coords(campusCenter),
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.OK)
	assert.True(t, result.Verified)
	require.NotNil(t, result.DistanceMeters)
	assert.InDelta(t, 0, *result.DistanceMeters, 0.01)

	require.Len(t, records.records, 1)
	record := records.records[0]
	assert.Equal(t, StatusPresent, record.Status)
	assert.True(t, record.Verified)
	assert.Equal(t, "CS101", record.CourseID)
	assert.Equal(t, "Asha", record.StudentName)
}

func TestCheckInDistanceEqualToThresholdIsAccepted(t *testing.T) {
	distance := geo.DistanceMeters(campusCenter, remoteLocation)
	sess := openSession("sess-1", &campusCenter, distance)

	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(remoteLocation),
	})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.True(t, result.Verified)
	assert.Equal(t, StatusPresent, records.records[0].Status)
}

func TestCheckInDuplicateWritesNothing(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	first, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(campusCenter),
	})
	require.NoError(t, err)
	assert.False(t, first.AlreadyCheckedIn)

	second, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(campusCenter),
	})
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)
	assert.True(t, second.OK)
	assert.Len(t, records.records, 1)
}

func TestCheckInRejectedAttemptDoesNotBlockRetry(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	records := &fakeRecords{}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	_, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
	})
	assert.ErrorIs(t, err, models.ErrLocationRequired)

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(campusCenter),
	})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.False(t, result.AlreadyCheckedIn)

	// Both the rejection and the acceptance survive as the audit trail.
	assert.Len(t, records.records, 2)
}

func TestCheckInInsertRaceMapsToDuplicate(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	records := &fakeRecords{insertErr: models.ErrDuplicateRecord}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(campusCenter),
	})

	require.NoError(t, err)
	assert.True(t, result.AlreadyCheckedIn)
	assert.True(t, result.OK)
}

func TestCheckInInsertRaceReturnsWinningRecord(t *testing.T) {
	sess := openSession("sess-1", &campusCenter, 100)
	winnerDistance := 4.2
	records := &fakeRecords{
		insertErr: models.ErrDuplicateRecord,
		racedRecord: &Record{
			SessionID:      sess.ID,
			StudentID:      "s1",
			Status:         StatusPresent,
			Verified:       true,
			DistanceMeters: &winnerDistance,
		},
	}
	v := newTestVerifier(records, &fakeSessions{sessions: map[string]*session.Session{sess.ID: sess}}, &fakeEvents{})

	result, err := v.CheckIn(context.Background(), &CheckInRequest{
		SessionToken: sess.ID,
		StudentID:    "s1",
		Location:     coords(campusCenter),
	})

	require.NoError(t, err)
	assert.True(t, result.AlreadyCheckedIn)
	assert.True(t, result.Verified)
	require.NotNil(t, result.Record)
	assert.Same(t, records.racedRecord, result.Record)
	require.NotNil(t, result.DistanceMeters)
	assert.Equal(t, winnerDistance, *result.DistanceMeters)
}
