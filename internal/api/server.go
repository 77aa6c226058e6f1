// Package api exposes the aggregation engine over REST and a WebSocket
// recommendation feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/agents"
	"github.com/parlayforge/parlayforge/internal/aggregator"
	"github.com/parlayforge/parlayforge/internal/events"
	"github.com/parlayforge/parlayforge/internal/learning"
	"github.com/parlayforge/parlayforge/internal/weighting"
)

// Server is the REST API server
type Server struct {
	router     *gin.Engine
	aggregator *aggregator.Aggregator
	registry   *agents.Registry
	strategies *weighting.Registry
	learner    *learning.Learner
	prefs      *weighting.PreferenceStore
	bus        *events.Bus // nil when the event bus is disabled
	hub        *Hub
	addr       string
	server     *http.Server
	log        zerolog.Logger
	startTime  time.Time
}

// Config contains server configuration
type Config struct {
	Host       string
	Port       int
	Aggregator *aggregator.Aggregator
	Registry   *agents.Registry
	Strategies *weighting.Registry
	Learner    *learning.Learner
	Prefs      *weighting.PreferenceStore
	Bus        *events.Bus
	RateLimit  RateLimitConfig
	Log        zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	componentLog := config.Log.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(componentLog))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if config.RateLimit.Enabled {
		limiter := NewIPRateLimiter(config.RateLimit, componentLog)
		router.Use(limiter.Middleware())
	}

	server := &Server{
		router:     router,
		aggregator: config.Aggregator,
		registry:   config.Registry,
		strategies: config.Strategies,
		learner:    config.Learner,
		prefs:      config.Prefs,
		bus:        config.Bus,
		hub:        NewHub(componentLog),
		addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		log:        componentLog,
		startTime:  time.Now(),
	}

	// Freshly computed recommendations feed the live WebSocket stream
	config.Aggregator.OnRecommendation(server.hub.BroadcastRecommendation)

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/predict", s.handlePredict)
		v1.POST("/outcomes", s.handleReportOutcome)

		agentRoutes := v1.Group("/agents")
		{
			agentRoutes.GET("", s.handleListAgents)
			agentRoutes.GET("/:sport", s.handleGetAgent)
		}

		v1.GET("/strategies", s.handleListStrategies)
		v1.GET("/accuracy", s.handleGetAccuracy)

		prefRoutes := v1.Group("/preferences")
		{
			prefRoutes.PUT("/:user_id", s.handleSetPreferences)
			prefRoutes.GET("/:user_id", s.handleGetPreferences)
			prefRoutes.POST("/import", s.handleImportPreferences)
			prefRoutes.GET("/export", s.handleExportPreferences)
		}
	}

	s.router.GET("/health", s.handleGetHealth)
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/", s.handleRoot)
}

// Start runs the hub loop and the HTTP server; blocks until shutdown
func (s *Server) Start() error {
	go s.hub.Run()

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}
	return nil
}

// Router exposes the gin engine for handler tests
func (s *Server) Router() http.Handler {
	return s.router
}

// LoggerMiddleware logs every request through zerolog
func LoggerMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logEvent := log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
