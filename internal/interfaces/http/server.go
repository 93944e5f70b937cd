// Package http exposes the approval workflow over a JSON API.
// Handlers translate requests into application service calls and nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SocketServer upgrades an authenticated request to a realtime socket
type SocketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Version:      "dev",
	}
}

// ReceiptFiles serves locally stored receipts under a URL prefix
type ReceiptFiles struct {
	Prefix string
	Dir    string
}

// Dependencies are the application services the API fronts. Sockets,
// Metrics and Receipts are optional.
type Dependencies struct {
	Identity      port.IdentityProvider
	Engine        appwf.WorkflowEngine
	Submissions   service.SubmissionService
	Queries       service.QueryService
	Stats         service.StatsService
	Exports       service.ExportService
	Notifications service.NotificationService
	Push          service.PushService
	Admin         service.AdminService
	Sockets       SocketServer
	Metrics       http.Handler
	Receipts      *ReceiptFiles
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestID())
	s.router.Use(s.loggingMiddleware())
}

// requestID tags every request so log lines can be correlated
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError && len(c.Errors) > 0 {
			s.logger.Error("HTTP request failed",
				"method", method,
				"path", path,
				"error", c.Errors.String(),
				"request_id", c.GetString("request_id"),
			)
		}

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		)
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.config.Version, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	if r := s.deps.Receipts; r != nil && r.Prefix != "" && r.Dir != "" {
		s.router.Static(r.Prefix, r.Dir)
	}

	api := s.router.Group("/api/v1")
	api.Use(authMiddleware(s.deps.Identity))
	{
		api.POST("/expenses", h.SubmitExpense)
		api.POST("/purchase-orders", h.SubmitPurchaseOrder)

		for _, kind := range entity.Kinds {
			g := api.Group("/" + kind.Path())
			g.GET("", h.ListRequests(kind))
			g.GET("/:id", h.GetRequest(kind))
			g.GET("/:id/history", h.RequestHistory(kind))
			g.POST("/:id/approve", h.Act(kind, domainwf.TriggerApprove))
			g.POST("/:id/reject", h.Act(kind, domainwf.TriggerReject))
		}

		api.GET("/dashboard", h.Dashboard)
		api.GET("/stats", h.HomeStats)
		api.GET("/export.xlsx", h.Export)

		api.GET("/notifications", h.ListNotifications)
		api.POST("/notifications/read-all", h.MarkAllRead)

		api.POST("/push/subscriptions", h.Subscribe)
		api.DELETE("/push/subscriptions", h.Unsubscribe)

		admin := api.Group("/admin")
		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/role", h.SetRole)
		admin.GET("/role-counts", h.RoleCounts)

		api.GET("/ws", h.Socket)
	}
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
