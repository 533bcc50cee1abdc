package attendance

import (
	"context"
	"errors"
	"net/http"
	"time"

	"geoattend-svc/src/internal/config"
	"geoattend-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	CheckIn(c *gin.Context)
	FinalizeSession(c *gin.Context)
	ListAttendance(c *gin.Context)
	SessionReport(c *gin.Context)
}

type handler struct {
	config    *config.Configuration
	verifier  Verifier
	finalizer Finalizer
	records   Repository
}

func NewHandler(cfg *config.Configuration, verifier Verifier, finalizer Finalizer, records Repository) Handler {
	return &handler{
		config:    cfg,
		verifier:  verifier,
		finalizer: finalizer,
		records:   records,
	}
}

func (h *handler) CheckIn(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Invalid check-in payload")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_params",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.verifier.CheckIn(ctx, &req)
	if err != nil {
		h.handleCheckInError(c, &req, result, err)
		return
	}

	if result.AlreadyCheckedIn {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"code":    OutcomeAlreadyCheckedIn,
			"data":    result,
			"message": "Student already checked in for this session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": "Check-in verified",
	})
}

func (h *handler) handleCheckInError(c *gin.Context, req *CheckInRequest, result *CheckInResult, err error) {
	fields := logrus.Fields{
		"session_token": req.SessionToken,
		"student_id":    req.StudentID,
	}

	switch {
	case errors.Is(err, models.ErrMissingParams):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_params",
			"message": "sessionToken and studentId are required",
		})
	case errors.Is(err, models.ErrSessionNotFound):
		logrus.WithFields(fields).Warn("Check-in with unknown session token")
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "invalid_session",
			"message": "No session found for the provided token",
		})
	case errors.Is(err, models.ErrSessionExpired):
		c.JSON(http.StatusGone, gin.H{
			"error":   "session_expired",
			"message": "The attendance window has closed",
		})
	case errors.Is(err, models.ErrLocationRequired):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "location_required",
			"message": "A client location with latitude and longitude is required",
			"data":    result,
		})
	case errors.Is(err, models.ErrSessionMissingGeofence):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "session_has_no_location",
			"message": "The session has no geofence location; check-ins are disabled",
			"data":    result,
		})
	case errors.Is(err, models.ErrOutOfRange):
		c.JSON(http.StatusForbidden, gin.H{
			"error":           "out_of_range",
			"message":         "Location is outside the allowed check-in radius",
			"distanceMeters":  result.DistanceMeters,
			"thresholdMeters": result.ThresholdMeters,
			"data":            result,
		})
	default:
		logrus.WithError(err).WithFields(fields).Error("Check-in failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": err.Error(),
		})
	}
}

func (h *handler) FinalizeSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	sessionID := c.Param("id")

	logrus.WithField("session_id", sessionID).Info("Finalize session request received")

	result, err := h.finalizer.Finalize(ctx, sessionID)
	if err != nil {
		h.handleSessionError(c, sessionID, err, "Failed to finalize session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"ok":           result.OK,
		"absentsAdded": result.AbsentsAdded,
		"message":      "Session finalized successfully",
	})
}

func (h *handler) ListAttendance(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_params",
			"message": "Session ID is required",
		})
		return
	}

	records, err := h.records.ListBySession(ctx, sessionID)
	if err != nil {
		h.handleSessionError(c, sessionID, err, "Failed to list attendance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

func (h *handler) SessionReport(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	sessionID := c.Param("id")
	report, err := h.finalizer.Report(ctx, sessionID)
	if err != nil {
		h.handleSessionError(c, sessionID, err, "Failed to build session report")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

func (h *handler) handleSessionError(c *gin.Context, sessionID string, err error, logMessage string) {
	switch {
	case errors.Is(err, models.ErrMissingParams):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_sessionId",
			"message": "Session ID is required",
		})
	case errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "invalid_session",
			"message": "No session found with the provided ID",
		})
	default:
		logrus.WithError(err).WithField("session_id", sessionID).Error(logMessage)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": err.Error(),
		})
	}
}
