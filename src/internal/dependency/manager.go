package dependency

import (
	"geoattend-svc/src/clients"
	"geoattend-svc/src/internal/attendance"
	"geoattend-svc/src/internal/cache"
	"geoattend-svc/src/internal/config"
	"geoattend-svc/src/internal/roster"
	"geoattend-svc/src/internal/session"

	"github.com/gin-gonic/gin"
)

type Manager struct {
	Router            *gin.Engine
	Config            *config.Configuration
	Mongodb           *clients.MongoDB
	Redis             *clients.RedisClient
	RabbitMQ          *clients.RabbitMQ
	AuditPublisher    *clients.AuditPublisher
	CacheService      cache.Service
	SessionService    session.Service
	SessionHandler    session.Handler
	AttendanceRepo    attendance.Repository
	Verifier          attendance.Verifier
	Finalizer         attendance.Finalizer
	AttendanceHandler attendance.Handler
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {
	cacheService := cache.NewCacheService(redisClient.Client, cfg)
	auditPublisher := clients.NewAuditPublisher(cfg, rabbitMQ.Channel)

	sessionRepo := session.NewSessionRepository(mongodb, cfg.Database.SessionCollection)
	sessionService := session.NewSessionService(sessionRepo, cacheService, cfg)
	sessionHandler := session.NewHandler(cfg, sessionService)

	attendanceRepo := attendance.NewAttendanceRepository(mongodb, cfg.Database.AttendanceCollection)
	rosterRepo := roster.NewRosterRepository(mongodb, cfg.Database.RosterCollection)

	verifier := attendance.NewVerifier(attendanceRepo, sessionService, auditPublisher)
	finalizer := attendance.NewFinalizer(attendanceRepo, sessionService, rosterRepo, auditPublisher)
	attendanceHandler := attendance.NewHandler(cfg, verifier, finalizer, attendanceRepo)

	return &Manager{
		Router:            router,
		Config:            cfg,
		Mongodb:           mongodb,
		Redis:             redisClient,
		RabbitMQ:          rabbitMQ,
		AuditPublisher:    auditPublisher,
		CacheService:      cacheService,
		SessionService:    sessionService,
		SessionHandler:    sessionHandler,
		AttendanceRepo:    attendanceRepo,
		Verifier:          verifier,
		Finalizer:         finalizer,
		AttendanceHandler: attendanceHandler,
	}
}
