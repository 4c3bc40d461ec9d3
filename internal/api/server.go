// Package api exposes the risk engine over HTTP: assessment, staffing
// simulation, follow-up tracking, and a live staffing feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
	"github.com/readmit-risk-server/internal/followup"
	"github.com/readmit-risk-server/internal/middleware"
	"github.com/readmit-risk-server/internal/service"
)

const (
	recentAssessmentCacheSize = 512
	recentAssessmentCacheTTL  = 30 * time.Minute

	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	assessor      *service.Assessor
	simulator     *service.StaffingSimulator
	followups     followup.Store
	assessments   domain.AssessmentRepository
	log           *logrus.Logger

	router *gin.Engine
	server *http.Server
	hub    *staffingHub

	// recent holds fresh assessments so report retrieval does not need a
	// database round trip, and serves as the only store when no database
	// is configured.
	recent *lru.LRU[string, *domain.RiskAssessment]
}

// NewServer creates a new HTTP server instance. assessments may be nil
// when the engine runs without a database.
func NewServer(
	configManager domain.ConfigManager,
	assessor *service.Assessor,
	simulator *service.StaffingSimulator,
	followups followup.Store,
	assessments domain.AssessmentRepository,
	logger *logrus.Logger,
) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())

	s := &Server{
		configManager: configManager,
		assessor:      assessor,
		simulator:     simulator,
		followups:     followups,
		assessments:   assessments,
		log:           logger,
		router:        router,
		hub:           newStaffingHub(logger),
		recent:        lru.NewLRU[string, *domain.RiskAssessment](recentAssessmentCacheSize, nil, recentAssessmentCacheTTL),
	}

	s.setupRoutes()
	return s
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go s.hub.run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/assess", s.handleAssess)
		v1.GET("/assessments/:id", s.handleGetAssessment)
		v1.GET("/assessments", s.handleListAssessments)

		v1.POST("/staffing/simulate", s.handleSimulateStaffing)
		v1.GET("/staffing/live", s.handleStaffingFeed)

		v1.GET("/followups", s.handleListFollowups)
		v1.POST("/followups/:id/complete", s.handleCompleteFollowup)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
