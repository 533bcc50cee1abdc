package session

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
	CreateSession(c *gin.Context)
	DescribeSession(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{
		config:  cfg,
		service: service,
	}
}

func (h *handler) CreateSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Invalid create session payload")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_params",
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.service.Create(ctx, &req)
	if err != nil {
		if errors.Is(err, models.ErrMissingParams) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "missing_params",
				"message": "courseId is required",
			})
			return
		}
		logrus.WithError(err).Error("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": &CreateSessionResponse{
			SessionID: session.ID,
			Token:     session.ID,
			Session:   session,
		},
		"message": "Session created successfully",
	})
}

func (h *handler) DescribeSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	sessionID := c.Param("id")
	session, err := h.service.Get(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMissingParams):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "missing_params",
				"message": "Session ID is required",
			})
		case errors.Is(err, models.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "invalid_session",
				"message": "No session found with the provided ID",
			})
		default:
			logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to describe session")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "server_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    session,
	})
}
