package server

import (
	"time"

	"geoattend-svc/src/clients"
	"geoattend-svc/src/internal/dependency"
	"geoattend-svc/src/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(enableCORS)

	setupHealthEndpoint(deps)
	setupPublicRoutes(router, deps)
	setupOperatorRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	mongodb := deps.Mongodb
	redisClient := deps.Redis
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		log.Info("Health check endpoint requested")

		mongoStatus := "ok"
		if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
			mongoStatus = "error: " + err.Error()
		}

		redisStatus := "ok"
		if err := redisClient.Client.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "error: " + err.Error()
		}

		c.JSON(200, gin.H{
			"status":    "ok",
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"mongodb":   mongoStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})

	router.GET("/health/detailed", func(c *gin.Context) {
		log.Info("Detailed health check endpoint requested")

		c.JSON(200, gin.H{
			"status":  "operational",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"components": gin.H{
				"database": gin.H{
					"mongodb": getStatus(isMongoConnected(mongodb, c)),
					"redis":   getStatus(isRedisConnected(redisClient.Client, c)),
				},
				"services": gin.H{
					"sessions": "operational",
					"checkin":  "operational",
					"finalize": "operational",
				},
			},
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func setupPublicRoutes(router *gin.Engine, deps *dependency.Manager) {
	// API status endpoint
	router.GET("/api/v1/status", func(c *gin.Context) {
		log.Info("API status requested")
		c.JSON(200, gin.H{
			"api_version": "v1",
			"status":      "operational",
			"service":     "geoattend-svc",
		})
	})

	// Check-in is public: the unguessable session token is the trust
	// boundary for students.
	router.POST("/api/v1/checkin",
		setRouteName("checkIn"),
		deps.AttendanceHandler.CheckIn)
}

func setupOperatorRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := middleware.NewAuthMiddleware(deps.Config.Security.JwtKey)

	sessions := deps.SessionHandler
	attendance := deps.AttendanceHandler

	// Apply route name FIRST, then auth middlewares
	operator := router.Group("/api/v1/sessions")
	{
		operator.POST("",
			setRouteName("createSession"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireOperatorRights(),
			sessions.CreateSession)

		operator.GET("/:id",
			setRouteName("describeSession"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireOperatorRights(),
			sessions.DescribeSession)

		operator.POST("/:id/finalize",
			setRouteName("finalizeSession"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireOperatorRights(),
			attendance.FinalizeSession)

		operator.GET("/:id/attendance",
			setRouteName("listAttendance"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireOperatorRights(),
			attendance.ListAttendance)

		operator.GET("/:id/report",
			setRouteName("sessionReport"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireOperatorRights(),
			attendance.SessionReport)
	}
}

func setRouteName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("route_name", name)
		c.Next()
	}
}

func isMongoConnected(mongodb *clients.MongoDB, c *gin.Context) bool {
	if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
		return false
	}
	return true
}

func isRedisConnected(redisClient *redis.Client, c *gin.Context) bool {
	if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
		return false
	}
	return true
}

func enableCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}

	c.Next()
}

func getStatus(b bool) string {
	if b {
		return "connected"
	}
	return "disconnected"
}
