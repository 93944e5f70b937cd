// Package container provides dependency injection and lifecycle management
// for the approval workflow service.
package container

import (
	"fmt"

	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/awssvc"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-workflow/internal/infrastructure/identity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/telemetry"
	"github.com/garyjia/approval-workflow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/approval-workflow/internal/interfaces/http"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// Config holds the resolved settings for every subsystem the container builds
type Config struct {
	Server   httpapi.ServerConfig
	Database DatabaseConfig
	Auth     identity.Config

	// Policy is the validated approval ladder
	Policy *domainwf.Policy

	Storage   StorageConfig
	AWS       awssvc.Config
	Channels  ChannelsConfig
	Events    EventsConfig
	Reminders RemindersConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig wraps the connection settings with an optional schema override
type DatabaseConfig struct {
	database.Config

	// MigrationsDir replaces the bundled schema when set
	MigrationsDir string
}

// Storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// StorageConfig selects the receipt object store
type StorageConfig struct {
	Backend       string
	LocalDir      string
	PublicBaseURL string
	Bucket        string
}

// ChannelsConfig enables delivery channels. The in-app feed is always on.
type ChannelsConfig struct {
	// PublicURL prefixes relative links in chat and email
	PublicURL string

	LarkEnabled bool
	Lark        lark.Config

	EmailEnabled bool
	EmailFrom    string

	PushEnabled  bool
	PushTopicARN string

	WebSocketEnabled bool
	AllowedOrigins   []string
}

// NeedsAWS reports whether any enabled component talks to AWS
func (c *Config) NeedsAWS() bool {
	return c.Storage.Backend == StorageS3 || c.Channels.EmailEnabled || c.Channels.PushEnabled
}

// EventsConfig configures the NATS event publisher
type EventsConfig struct {
	Enabled    bool
	URL        string
	ClientName string
}

// RemindersConfig configures the stale-request reminder worker
type RemindersConfig struct {
	Enabled bool
	worker.ReminderConfig
}

// TelemetryConfig configures metrics and tracing
type TelemetryConfig struct {
	Metrics bool
	Tracing telemetry.TracingConfig
}

// Validate checks the invariants the providers rely on
func (c *Config) Validate() error {
	if c.Policy == nil {
		return fmt.Errorf("approval policy is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("local storage directory is required")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for s3")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events URL is required when events are enabled")
	}
	return nil
}
