package container

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/awssvc"
	"github.com/garyjia/approval-workflow/internal/infrastructure/identity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approval-workflow/internal/infrastructure/telemetry"
	"github.com/garyjia/approval-workflow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/approval-workflow/internal/interfaces/http"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Telemetry
	metrics        *telemetry.Metrics
	tracerShutdown telemetry.Shutdown

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqldb.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	awsConfig *aws.Config
	events    *EventsBundle
	channels  *ChannelBundle
	storage   *StorageBundle
	identity  *identity.JWTProvider

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   appwf.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Interfaces
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins background processing.
// Components are initialized in dependency order:
// 1. Telemetry
// 2. Database and repositories
// 3. External clients (AWS, NATS, Lark, sockets)
// 4. Storage and identity
// 5. Event dispatcher and workflow engine
// 6. Application services and event subscriptions
// 7. Workers
// 8. HTTP server (built, not listening)
//
// A failed step releases whatever the earlier steps opened.
func (c *Container) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	defer func() {
		if err != nil {
			c.teardown()
		}
	}()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"telemetry", c.initTelemetry},
		{"database", c.initDatabase},
		{"external clients", c.initExternalClients},
		{"storage", c.initStorage},
		{"dispatcher and workflow", c.initDispatcherAndWorkflow},
		{"services", c.initServices},
		{"workers", c.initWorkers},
		{"http server", c.initHTTPServer},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases components in the reverse of Start's order. Each
// component is released at most once.
func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers so no reminder runs against a closing store
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
		c.workers = nil
	}

	// Step 2: Close dispatcher, waiting for in-flight notifications
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	// Step 3: Disconnect live sockets and the event bus
	if c.channels != nil && c.channels.Hub != nil {
		c.channels.Hub.Close()
		c.logger.Info("WebSocket hub closed")
	}
	c.channels = nil
	if c.events != nil {
		if err := c.events.Conn.Drain(); err != nil {
			c.logger.Error("Failed to drain NATS connection", zap.Error(err))
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		} else {
			c.logger.Info("NATS connection drained")
		}
		c.events = nil
	}

	// Step 4: Close database
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}

	// Step 5: Flush spans
	if c.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.tracerShutdown(ctx); err != nil {
			c.logger.Error("Failed to flush traces", zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
		cancel()
		c.tracerShutdown = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}
	notInitialized := ComponentHealth{Healthy: false, Message: "not initialized"}

	// Check database
	if c.db != nil {
		if err := c.db.Ping(); err != nil {
			set("database", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true, Message: string(c.db.Dialect())})
		}
	} else {
		set("database", notInitialized)
	}

	// Check workers
	if c.workers != nil {
		failed := c.workers.Failed()
		healthy := len(failed) == 0 && (c.workers.WorkerCount() == 0 || c.workers.IsRunning())
		msg := fmt.Sprintf("worker count: %d", c.workers.WorkerCount())
		if len(failed) > 0 {
			msg += fmt.Sprintf(", failed: %s", strings.Join(failed, ","))
		}
		set("workers", ComponentHealth{
			Healthy: healthy,
			Message: msg,
		})
	} else {
		set("workers", notInitialized)
	}

	// Check dispatcher
	if c.dispatcher != nil {
		subs := 0
		for _, et := range publishedEvents {
			subs += len(c.dispatcher.ListHandlers(et))
		}
		set("dispatcher", ComponentHealth{
			Healthy: subs > 0,
			Message: fmt.Sprintf("subscriptions: %d", subs),
		})
	} else {
		set("dispatcher", notInitialized)
	}

	// Check event bus
	if c.events != nil {
		set("events", ComponentHealth{
			Healthy: c.events.Conn.IsConnected(),
			Message: c.events.Conn.Status().String(),
		})
	}

	// Check sockets
	if c.channels != nil && c.channels.Hub != nil {
		set("websocket", ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("connections: %d", c.channels.Hub.ConnectionCount()),
		})
	}

	return status
}

func (c *Container) initTelemetry() error {
	shutdown, err := telemetry.InitTracing(c.config.Telemetry.Tracing)
	if err != nil {
		return err
	}
	c.tracerShutdown = shutdown

	if c.config.Telemetry.Metrics {
		c.metrics = telemetry.NewMetrics()
	}
	return nil
}

// initDatabase opens the database and builds all repositories.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = dbBundle.DB
	c.txManager = dbBundle.TxManager

	repos, err := ProvideRepositories(c.txManager, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

// initExternalClients resolves AWS, connects NATS and builds the channels.
func (c *Container) initExternalClients() error {
	if c.config.NeedsAWS() {
		awsCfg, err := ProvideAWS(c.ctx, c.config.AWS)
		if err != nil {
			return err
		}
		c.awsConfig = awsCfg
	}

	events, err := ProvideEvents(&c.config.Events, c.logger)
	if err != nil {
		return err
	}
	c.events = events

	channels, err := ProvideChannels(&c.config.Channels, c.awsConfig, c.config.AWS.Endpoint, c.logger)
	if err != nil {
		return err
	}
	c.channels = channels
	return nil
}

// initStorage builds the receipt store and the token verifier.
func (c *Container) initStorage() error {
	bundle, err := ProvideStorage(&c.config.Storage, c.awsConfig, c.config.AWS.Endpoint, c.logger)
	if err != nil {
		return err
	}
	c.storage = bundle

	c.identity = ProvideIdentity(c.config.Auth, c.repositories.Profiles, c.logger)
	return nil
}

// initDispatcherAndWorkflow creates the event dispatcher and workflow engine.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Policy:     c.config.Policy,
		Dispatcher: c.dispatcher,
		Metrics:    c.portMetrics(),
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine
	return nil
}

// initServices creates the services and registers event subscribers.
func (c *Container) initServices() error {
	var pushSender port.PushSender
	if c.config.Channels.PushEnabled {
		pushSender = awssvc.NewSNSPushSender(
			awssvc.NewSNSClient(*c.awsConfig, c.config.AWS.Endpoint),
			c.config.Channels.PushTopicARN,
			c.logger,
		)
	}

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Storage:    c.storage,
		Channels:   c.channels,
		Engine:     c.workflow,
		Dispatcher: c.dispatcher,
		Metrics:    c.portMetrics(),
		PushSender: pushSender,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	if c.events != nil {
		SubscribePublisher(c.dispatcher, c.events.Publisher)
	}
	return nil
}

// initWorkers creates and starts all background workers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&c.config.Reminders, c.services.Reminders, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

func (c *Container) initHTTPServer() error {
	deps := &HTTPDeps{
		Config:   c.config.Server,
		Identity: c.identity,
		Engine:   c.workflow,
		Services: c.services,
		Logger:   c.logger,
	}
	if c.channels != nil {
		deps.Hub = c.channels.Hub
	}
	if c.metrics != nil {
		deps.Metrics = c.metrics.Handler()
	}
	if st := c.config.Storage; st.Backend == StorageLocal && strings.HasPrefix(st.PublicBaseURL, "/") {
		deps.Receipts = &httpapi.ReceiptFiles{Prefix: st.PublicBaseURL, Dir: st.LocalDir}
	}

	server, err := ProvideHTTPServer(deps)
	if err != nil {
		return err
	}
	c.server = server
	return nil
}

// portMetrics returns the recorder, or nil so services fall back to no-op
func (c *Container) portMetrics() port.Metrics {
	if c.metrics == nil {
		return nil
	}
	return c.metrics
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.txManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Identity returns the bearer token verifier.
func (c *Container) Identity() *identity.JWTProvider {
	return c.identity
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() appwf.WorkflowEngine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// HTTPServer returns the API server.
func (c *Container) HTTPServer() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
