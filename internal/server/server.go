package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/T-Rylander/unifi-edtech-stack/internal/handler"
	"github.com/T-Rylander/unifi-edtech-stack/internal/metrics"
	"github.com/T-Rylander/unifi-edtech-stack/internal/middleware"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	router  *gin.Engine
	handler *handler.Handler
	apiKey  string
	limiter *middleware.ClientLimiter
	logger  *zap.Logger
}

// NewServer assembles the gin engine: global request-ID and metrics stages
// plus the route table.
func NewServer(h *handler.Handler, apiKey string, limiter *middleware.ClientLimiter, logger *zap.Logger) *Server {
	router := gin.Default()
	router.Use(middleware.RequestID(), middleware.Metrics())

	s := &Server{
		router:  router,
		handler: h,
		apiKey:  apiKey,
		limiter: limiter,
		logger:  logger,
	}

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Open diagnostic routes
	s.router.GET("/health", s.handler.Health)
	s.router.GET("/api/version", s.handler.Version)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Grouping routes sit behind the API key; only the inference route is
	// rate limited.
	protected := s.router.Group("/")
	protected.Use(middleware.APIKey(s.apiKey, s.logger))
	{
		protected.POST("/vlan-group", middleware.RateLimit(s.limiter, s.logger), s.handler.SuggestGrouping)
		protected.POST("/feedback", s.handler.RecordFeedback)
	}

	s.router.NoRoute(s.handler.NotFound)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("Server starting", zap.String("address", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}
