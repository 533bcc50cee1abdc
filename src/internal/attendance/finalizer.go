package attendance

import (
	"context"
	"time"

	"geoattend-svc/src/internal/metrics"
	"geoattend-svc/src/internal/models"
	"geoattend-svc/src/internal/roster"

	"github.com/sirupsen/logrus"
)

// Finalizer derives absence from the roster complement once a session
// closes: every enrolled student without a "present" record gets an
// "absent" record. The bulk write is an insert-or-ignore, so re-running
// finalization adds nothing.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error)
	Report(ctx context.Context, sessionID string) (*SessionReport, error)
}

type finalizer struct {
	records  Repository
	sessions SessionSource
	roster   roster.Repository
	events   EventPublisher
	now      func() time.Time
}

func NewFinalizer(records Repository, sessions SessionSource, rosterRepo roster.Repository, events EventPublisher) Finalizer {
	return &finalizer{
		records:  records,
		sessions: sessions,
		roster:   rosterRepo,
		events:   events,
		now:      time.Now,
	}
}

func (f *finalizer) Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error) {
	if sessionID == "" {
		return nil, models.ErrMissingParams
	}

	sess, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	records, err := f.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	for _, record := range records {
		if record.Status == StatusPresent {
			present[record.StudentID] = true
		}
	}

	entries, err := f.roster.ListByCourse(ctx, sess.CourseID)
	if err != nil {
		return nil, err
	}

	finalizedAt := f.now().UTC()
	var absences []*Record
	for _, entry := range entries {
		if present[entry.StudentID] {
			continue
		}
		absences = append(absences, &Record{
			SessionID:   sessionID,
			StudentID:   entry.StudentID,
			StudentName: entry.Name,
			CourseID:    entry.CourseID,
			Status:      StatusAbsent,
			Verified:    false,
			Timestamp:   finalizedAt,
		})
	}

	if len(absences) == 0 {
		logrus.WithField("session_id", sessionID).Info("Finalization found no absentees")
		return &FinalizeResult{OK: true, AbsentsAdded: 0}, nil
	}

	added, err := f.records.BulkUpsertAbsences(ctx, absences)
	if err != nil {
		return nil, err
	}

	metrics.AbsencesAdded.Add(float64(added))

	if added > 0 {
		f.publishAbsences(sess.ID, absences)
	}

	logrus.WithFields(logrus.Fields{
		"session_id":    sessionID,
		"course_id":     sess.CourseID,
		"roster_size":   len(entries),
		"present_count": len(present),
		"absents_added": added,
	}).Info("Session finalized")

	return &FinalizeResult{OK: true, AbsentsAdded: added}, nil
}

func (f *finalizer) publishAbsences(sessionID string, absences []*Record) {
	if f.events == nil {
		return
	}
	for _, record := range absences {
		event := models.CheckinEvent{
			SessionID:   sessionID,
			CourseID:    record.CourseID,
			StudentID:   record.StudentID,
			Status:      record.Status,
			Verified:    record.Verified,
			ServiceName: models.ServiceFinalizeProcessor,
			Timestamp:   record.Timestamp,
		}
		if err := f.events.PublishCheckinEvent(event); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"session_id": sessionID,
				"student_id": record.StudentID,
			}).Warn("Failed to publish absence event")
		}
	}
}

// Report joins the session's records with the course roster. Each roster
// student gets their most recent record; students with no record at all
// show as unmarked.
func (f *finalizer) Report(ctx context.Context, sessionID string) (*SessionReport, error) {
	if sessionID == "" {
		return nil, models.ErrMissingParams
	}

	sess, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	records, err := f.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entries, err := f.roster.ListByCourse(ctx, sess.CourseID)
	if err != nil {
		return nil, err
	}

	// Records arrive newest first; prefer a "present" record over any
	// later rejection so an accepted student never shows as rejected.
	latest := make(map[string]*Record)
	for _, record := range records {
		current, ok := latest[record.StudentID]
		if !ok {
			latest[record.StudentID] = record
			continue
		}
		if current.Status != StatusPresent && record.Status == StatusPresent {
			latest[record.StudentID] = record
		}
	}

	report := &SessionReport{
		SessionID: sess.ID,
		CourseID:  sess.CourseID,
		Rows:      make([]ReportRow, 0, len(entries)),
	}

	for _, entry := range entries {
		row := ReportRow{
			StudentID: entry.StudentID,
			Name:      entry.Name,
			Status:    StatusUnmarked,
		}
		if record, ok := latest[entry.StudentID]; ok {
			row.Status = record.Status
			row.Verified = record.Verified
			row.DistanceMeters = record.DistanceMeters
			ts := record.Timestamp
			row.Timestamp = &ts
		}

		switch row.Status {
		case StatusPresent:
			report.Present++
		case StatusAbsent:
			report.Absent++
		case StatusUnmarked:
			report.Unmarked++
		default:
			report.Rejected++
		}

		report.Rows = append(report.Rows, row)
	}

	return report, nil
}
