package container

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/export"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/awssvc"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/lark"
	natspub "github.com/garyjia/approval-workflow/internal/infrastructure/external/nats"
	"github.com/garyjia/approval-workflow/internal/infrastructure/identity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approval-workflow/internal/infrastructure/storage"
	"github.com/garyjia/approval-workflow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/approval-workflow/internal/interfaces/http"
	"github.com/garyjia/approval-workflow/internal/interfaces/websocket"
	"github.com/garyjia/approval-workflow/pkg/database"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

// notificationEvents are the events that produce an in-app notification
var notificationEvents = []event.Type{
	event.TypeRequestSubmitted,
	event.TypeRequestApproved,
	event.TypeRequestRejected,
	event.TypeRequestEscalated,
	event.TypeReminderDue,
}

// publishedEvents are forwarded to the external bus
var publishedEvents = []event.Type{
	event.TypeRequestSubmitted,
	event.TypeRequestApproved,
	event.TypeRequestRejected,
	event.TypeRequestEscalated,
	event.TypeStatusChanged,
	event.TypeRoleChanged,
	event.TypeReminderDue,
}

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB        *database.DB
	TxManager *sqldb.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Requests          port.RequestRepository
	Profiles          port.ProfileRepository
	History           port.HistoryRepository
	Notifications     port.NotificationRepository
	PushSubscriptions port.PushSubscriptionRepository
}

// StorageBundle holds the receipt store and its content check.
type StorageBundle struct {
	Store     port.ObjectStore
	Inspector port.ReceiptInspector
}

// ChannelBundle holds the delivery channels next to the in-app feed.
type ChannelBundle struct {
	Channels []port.NotificationChannel
	Hub      *websocket.Hub
}

// EventsBundle holds the NATS connection and the publisher over it.
type EventsBundle struct {
	Conn      *natsgo.Conn
	Publisher *natspub.Publisher
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Submissions   service.SubmissionService
	Queries       service.QueryService
	Stats         service.StatsService
	Exports       service.ExportService
	Notifications service.NotificationService
	Push          service.PushService
	Admin         service.AdminService
	Reminders     service.ReminderService
}

// ProvideDatabase opens the connection and applies pending migrations.
// Uses the bundled schema unless a migrations directory is configured.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == database.DialectSQLite || cfg.Driver == "" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := database.New(cfg.Config, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.Run()
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:        db,
		TxManager: sqldb.NewDB(db, logger),
	}, nil
}

// ProvideRepositories creates all repositories over the transaction-aware DB.
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Requests:          repository.NewRequestRepository(db, logger),
		Profiles:          repository.NewProfileRepository(db, logger),
		History:           repository.NewHistoryRepository(db, logger),
		Notifications:     repository.NewNotificationRepository(db, logger),
		PushSubscriptions: repository.NewPushSubscriptionRepository(db, logger),
	}, nil
}

// ProvideAWS resolves the shared AWS configuration.
func ProvideAWS(ctx context.Context, cfg awssvc.Config) (*aws.Config, error) {
	awsCfg, err := awssvc.LoadConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}

// ProvideStorage creates the receipt store for the configured backend.
// awsCfg is required for the s3 backend only.
func ProvideStorage(cfg *StorageConfig, awsCfg *aws.Config, endpoint string, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var store port.ObjectStore
	switch cfg.Backend {
	case StorageS3:
		if awsCfg == nil {
			return nil, fmt.Errorf("aws config is required for s3 storage")
		}
		store = storage.NewS3Storage(awssvc.NewS3Client(*awsCfg, endpoint), cfg.Bucket, cfg.PublicBaseURL, logger)
	case StorageLocal:
		store = storage.NewLocalFileStorage(cfg.LocalDir, cfg.PublicBaseURL, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	return &StorageBundle{
		Store:     store,
		Inspector: storage.NewReceiptInspector(logger),
	}, nil
}

// ProvideEvents connects to NATS when event publishing is enabled.
// Returns nil when it is not.
func ProvideEvents(cfg *EventsConfig, logger *zap.Logger) (*EventsBundle, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	conn, err := natspub.Connect(cfg.URL, cfg.ClientName, logger)
	if err != nil {
		return nil, err
	}
	return &EventsBundle{
		Conn:      conn,
		Publisher: natspub.NewPublisher(conn, logger),
	}, nil
}

// ProvideChannels builds the enabled chat, email and socket channels. Push
// is added by ProvideServices since it sits on the push service.
func ProvideChannels(cfg *ChannelsConfig, awsCfg *aws.Config, endpoint string, logger *zap.Logger) (*ChannelBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("channels config is required")
	}

	bundle := &ChannelBundle{}

	if cfg.LarkEnabled {
		sdk := lark.NewSDKClient(cfg.Lark, logger)
		bundle.Channels = append(bundle.Channels, lark.NewMessenger(sdk, cfg.PublicURL, logger))
	}

	if cfg.EmailEnabled {
		if awsCfg == nil {
			return nil, fmt.Errorf("aws config is required for email")
		}
		ses := awssvc.NewSESClient(*awsCfg, endpoint)
		bundle.Channels = append(bundle.Channels, awssvc.NewEmailChannel(ses, cfg.EmailFrom, cfg.PublicURL, logger))
	}

	if cfg.WebSocketEnabled {
		bundle.Hub = websocket.NewHub(cfg.AllowedOrigins, logger)
		bundle.Channels = append(bundle.Channels, bundle.Hub)
	}

	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))),
	), nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Policy     *domainwf.Policy
	Dispatcher dispatcher.Dispatcher
	Metrics    port.Metrics
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine over the configured policy.
func ProvideWorkflowEngine(deps *WorkflowDeps) (appwf.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	for _, tier := range deps.Policy.Tiers() {
		deps.Logger.Info("Approval tier",
			zap.String("role", string(tier.Role)),
			zap.Float64("threshold", tier.Threshold))
	}

	opts := []appwf.EngineOption{
		appwf.WithDispatcher(deps.Dispatcher),
		appwf.WithLogger(utils.NewKVLogger(deps.Logger.Named("workflow"))),
	}
	if deps.Metrics != nil {
		opts = append(opts, appwf.WithMetrics(deps.Metrics))
	}

	return appwf.NewEngine(
		deps.Repos.Requests,
		deps.Repos.Profiles,
		deps.Repos.History,
		deps.TxManager,
		domainwf.NewLifecycle(deps.Policy),
		opts...,
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Storage    *StorageBundle
	Channels   *ChannelBundle
	Engine     appwf.WorkflowEngine
	Dispatcher dispatcher.Dispatcher
	Metrics    port.Metrics
	// PushSender is nil when device push is disabled
	PushSender port.PushSender
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification service to workflow events.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Engine == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("workflow engine and dispatcher are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger.Named("service"))

	push := service.NewPushService(deps.Repos.PushSubscriptions, deps.PushSender, serviceLogger)

	var channels []port.NotificationChannel
	if deps.Channels != nil {
		channels = append(channels, deps.Channels.Channels...)
	}
	if deps.PushSender != nil {
		channels = append(channels, service.NewPushChannel(push))
	}

	notifications := service.NewNotificationService(
		deps.Repos.Notifications,
		deps.Repos.Profiles,
		channels,
		deps.Metrics,
		serviceLogger,
	)
	deps.Dispatcher.SubscribeAll(notificationEvents, "notifications", notifications.HandleEvent)

	return &ServiceBundle{
		Submissions: service.NewSubmissionService(
			deps.Repos.Requests,
			deps.Repos.Profiles,
			deps.Repos.History,
			deps.TxManager,
			deps.Storage.Store,
			deps.Storage.Inspector,
			deps.Dispatcher,
			deps.Metrics,
			serviceLogger,
		),
		Queries: service.NewQueryService(deps.Repos.Requests, deps.Repos.History, deps.Engine),
		Stats:   service.NewStatsService(deps.Repos.Requests, deps.Engine),
		Exports: service.NewExportService(
			deps.Repos.Requests,
			deps.Repos.Profiles,
			export.NewXLSXExporter(deps.Logger),
		),
		Notifications: notifications,
		Push:          push,
		Admin:         service.NewAdminService(deps.Repos.Profiles, deps.Dispatcher, serviceLogger),
		Reminders:     service.NewReminderService(deps.Repos.Requests, deps.Dispatcher, serviceLogger),
	}, nil
}

// SubscribePublisher forwards committed events to the external bus.
func SubscribePublisher(d dispatcher.Dispatcher, publisher port.EventPublisher) {
	d.SubscribeAll(publishedEvents, "event_publisher", publisher.Publish)
}

// ProvideWorkers creates and registers all background workers.
// Returns a manager with every worker registered but not started.
func ProvideWorkers(cfg *RemindersConfig, reminders service.ReminderService, logger *zap.Logger) (*worker.Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("reminders config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(logger)
	if cfg.Enabled {
		manager.Register(worker.NewReminderWorker(cfg.ReminderConfig, reminders, logger))
	}
	return manager, nil
}

// HTTPDeps holds what the API server fronts.
type HTTPDeps struct {
	Config   httpapi.ServerConfig
	Identity port.IdentityProvider
	Engine   appwf.WorkflowEngine
	Services *ServiceBundle
	Hub      *websocket.Hub
	Metrics  http.Handler
	Receipts *httpapi.ReceiptFiles
	Logger   *zap.Logger
}

// ProvideHTTPServer builds the API server. It is started by the caller.
func ProvideHTTPServer(deps *HTTPDeps) (*httpapi.Server, error) {
	if deps == nil || deps.Services == nil {
		return nil, fmt.Errorf("http dependencies are required")
	}

	apiDeps := httpapi.Dependencies{
		Identity:      deps.Identity,
		Engine:        deps.Engine,
		Submissions:   deps.Services.Submissions,
		Queries:       deps.Services.Queries,
		Stats:         deps.Services.Stats,
		Exports:       deps.Services.Exports,
		Notifications: deps.Services.Notifications,
		Push:          deps.Services.Push,
		Admin:         deps.Services.Admin,
		Metrics:       deps.Metrics,
		Receipts:      deps.Receipts,
	}
	if deps.Hub != nil {
		apiDeps.Sockets = deps.Hub
	}

	return httpapi.NewServer(deps.Config, apiDeps, utils.NewKVLogger(deps.Logger.Named("http"))), nil
}

// ProvideIdentity creates the bearer token verifier.
func ProvideIdentity(cfg identity.Config, profiles port.ProfileRepository, logger *zap.Logger) *identity.JWTProvider {
	return identity.NewJWTProvider(cfg, profiles, logger.Named("identity"))
}
