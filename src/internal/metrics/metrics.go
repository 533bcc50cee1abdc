package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckinAttempts counts classified check-in attempts by outcome status.
	CheckinAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_checkin_attempts_total",
		Help: "Check-in attempts by outcome status.",
	}, []string{"outcome"})

	// CheckinDistance observes the computed check-in distance in meters.
	CheckinDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_checkin_distance_meters",
		Help:    "Great-circle distance between client and session geofence center.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 25000},
	})

	// SessionsCreated counts created attendance sessions.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_created_total",
		Help: "Attendance sessions created.",
	})

	// AbsencesAdded counts absence records materialized by finalization.
	AbsencesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_absences_added_total",
		Help: "Absence records added by session finalization.",
	})
)
