// routes/routes.go
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"gppo/config"
	"gppo/controllers"
	"gppo/dispatch"
	"gppo/middleware"
	"gppo/models"
	"gppo/services"
	"gppo/store"
	"gppo/tracking"
	"gppo/utils"
	"gppo/websocket"
)

// Services bundles the service layer so main can reach the pieces that
// participate in startup reconciliation and shutdown.
type Services struct {
	Presence  *services.PresenceService
	Tracking  *services.TrackingService
	Emergency *services.EmergencyService
}

// Close releases service resources in reverse construction order.
func (s *Services) Close() {
	s.Tracking.Close()
	s.Presence.Close()
}

// SetupRoutes wires stores, services, controllers and middleware into a
// gin engine.
func SetupRoutes(cfg *config.Config, db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) (*gin.Engine, *Services) {
	router := gin.New()

	svcs := initializeServices(cfg, db, redisClient, hub)
	ctrls := initializeControllers(cfg, svcs, hub)

	setupGlobalMiddleware(router, cfg, redisClient)
	setupRoutes(router, cfg, ctrls, db, redisClient, hub)

	return router, svcs
}

func initializeServices(cfg *config.Config, db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) *Services {
	presenceStore := store.NewPresenceStore(store.NewRedisStore(redisClient))
	incidentRepo := dispatch.NewIncidentRepository(db)

	var router dispatch.ExternalRouter
	if cfg.RoutingServiceURL != "" {
		router = dispatch.NewRoutingClient(cfg.RoutingServiceURL)
		logrus.Infof("External routing service configured at %s", cfg.RoutingServiceURL)
	}
	estimator := dispatch.NewEstimator(router)

	notifications, err := utils.NewNotificationService(
		cfg.FirebaseCredentials, cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber,
	)
	if err != nil {
		logrus.Warnf("Notification providers unavailable, continuing without them: %v", err)
		notifications = nil
	}

	trackerCfg := tracking.DefaultTrackerConfig()
	trackerCfg.StaleAfter = cfg.StaleAfter()

	return &Services{
		Presence: services.NewPresenceService(presenceStore, hub),
		Tracking: services.NewTrackingService(presenceStore, hub, services.TrackingServiceConfig{
			BackgroundCapable: cfg.BackgroundCapable,
			GraceWindow:       cfg.GraceWindow(),
			Tracker:           trackerCfg,
		}),
		Emergency: services.NewEmergencyService(
			presenceStore, incidentRepo, estimator, notifications, hub, cfg.NotifyCount,
		),
	}
}

type Controllers struct {
	Auth      *controllers.AuthController
	Presence  *controllers.PresenceController
	Emergency *controllers.EmergencyController
	WebSocket *controllers.WebSocketController
}

func initializeControllers(cfg *config.Config, svcs *Services, hub *websocket.Hub) *Controllers {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	return &Controllers{
		Auth:      controllers.NewAuthController(svcs.Presence, jwtService, cfg.OperatorKey),
		Presence:  controllers.NewPresenceController(svcs.Presence),
		Emergency: controllers.NewEmergencyController(svcs.Emergency),
		WebSocket: controllers.NewWebSocketController(hub, svcs.Tracking),
	}
}

func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config, redisClient *redis.Client) {
	errorHandler := middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger())
	router.Use(errorHandler.Handle())
	router.Use(middleware.LoggerMiddleware(middleware.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
}

func setupRoutes(router *gin.Engine, cfg *config.Config, ctrls *Controllers, db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	auth := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Redis:     redisClient,
		Requests:  cfg.RateLimitRequests,
		Window:    time.Duration(cfg.RateLimitWindowMinutes) * time.Minute,
		SkipPaths: []string{"/health"},
	})

	router.GET("/health", healthHandler(db, redisClient, hub))

	v1 := router.Group("/api/v1")
	v1.Use(rateLimiter.Middleware())

	// Public
	v1.POST("/auth/officer/login", ctrls.Auth.OfficerLogin)
	v1.POST("/auth/operator/login", ctrls.Auth.OperatorLogin)

	// Authenticated
	authed := v1.Group("")
	authed.Use(auth.RequireAuth())
	{
		authed.GET("/officers", ctrls.Presence.ListPresences)
		authed.GET("/officers/:officerId", ctrls.Presence.GetPresence)
		authed.PUT("/officers/:officerId/status", ctrls.Presence.SetStatus)

		authed.POST("/emergency/trigger", ctrls.Emergency.Trigger)
		authed.POST("/emergency/resolve", ctrls.Emergency.Resolve)
		authed.GET("/incidents", ctrls.Emergency.ListMine)
		authed.POST("/incidents/:incidentId/acknowledge", ctrls.Emergency.Acknowledge)
		authed.POST("/incidents/:incidentId/respond", ctrls.Emergency.Respond)
		authed.POST("/incidents/:incidentId/complete", ctrls.Emergency.Complete)

		authed.GET("/ws", ctrls.WebSocket.HandleConnection)
	}

	// Operator only
	operator := v1.Group("")
	operator.Use(auth.RequireAuth(), auth.RequireOperator())
	{
		operator.POST("/officers", ctrls.Presence.Register)
		operator.PUT("/officers/:officerId/visibility", ctrls.Presence.SetVisibilityOverride)
		operator.GET("/events/:eventId/incidents", ctrls.Emergency.ListEvent)
		operator.GET("/ws/stats", ctrls.WebSocket.Stats)
	}
}

func healthHandler(db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) gin.HandlerFunc {
	startTime := time.Now()
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		statuses := map[string]string{
			"mongodb": "healthy",
			"redis":   "healthy",
		}
		healthy := true

		if err := db.Client().Ping(ctx, nil); err != nil {
			statuses["mongodb"] = "unhealthy"
			healthy = false
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			statuses["redis"] = "unhealthy"
			healthy = false
		}
		statuses["websocket"] = "healthy"

		status := "healthy"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Services:  statuses,
			Version:   "1.0.0",
			Uptime:    time.Since(startTime).Round(time.Second).String(),
		})
	}
}
