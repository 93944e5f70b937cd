package config

import (
	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/awssvc"
	"github.com/garyjia/approval-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-workflow/internal/infrastructure/identity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/telemetry"
	"github.com/garyjia/approval-workflow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/approval-workflow/internal/interfaces/http"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// ToContainerConfig converts the file-based Config into the container's
// resolved settings. The approval policy is loaded and validated here.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	policy, err := c.BuildPolicy()
	if err != nil {
		return nil, err
	}

	return &container.Config{
		Server: httpapi.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
			Version:      c.Telemetry.ServiceVersion,
		},
		Database: container.DatabaseConfig{
			Config: database.Config{
				Driver:          database.Dialect(c.Database.Driver),
				Path:            c.Database.Path,
				DSN:             c.Database.DSN,
				MaxOpenConns:    c.Database.MaxOpenConns,
				MaxIdleConns:    c.Database.MaxIdleConns,
				ConnMaxLifetime: c.Database.ConnMaxLifetime,
			},
			MigrationsDir: c.Database.MigrationsDir,
		},
		Auth: identity.Config{
			Secret:        c.Auth.JWTSecret,
			Issuer:        c.Auth.Issuer,
			TTL:           c.Auth.TokenTTL,
			AutoProvision: c.Auth.AutoProvision,
		},
		Policy: policy,
		Storage: container.StorageConfig{
			Backend:       c.Storage.Backend,
			LocalDir:      c.Storage.LocalDir,
			PublicBaseURL: c.Storage.PublicBaseURL,
			Bucket:        c.Storage.Bucket,
		},
		AWS: awssvc.Config{
			Region:          c.AWS.Region,
			AccessKeyID:     c.AWS.AccessKeyID,
			SecretAccessKey: c.AWS.SecretAccessKey,
			Endpoint:        c.AWS.Endpoint,
		},
		Channels: container.ChannelsConfig{
			PublicURL:   c.Server.PublicURL,
			LarkEnabled: c.Notifications.Lark.Enabled,
			Lark: lark.Config{
				AppID:     c.Notifications.Lark.AppID,
				AppSecret: c.Notifications.Lark.AppSecret,
				BaseURL:   c.Notifications.Lark.BaseURL,
			},
			EmailEnabled:     c.Notifications.Email.Enabled,
			EmailFrom:        c.Notifications.Email.From,
			PushEnabled:      c.Notifications.Push.Enabled,
			PushTopicARN:     c.Notifications.Push.TopicARN,
			WebSocketEnabled: c.Notifications.WebSocket.Enabled,
			AllowedOrigins:   c.Server.AllowedOrigins,
		},
		Events: container.EventsConfig{
			Enabled:    c.Notifications.Events.Enabled,
			URL:        c.Notifications.Events.URL,
			ClientName: c.Notifications.Events.ClientName,
		},
		Reminders: container.RemindersConfig{
			Enabled: c.Reminders.Enabled,
			ReminderConfig: worker.ReminderConfig{
				Schedule:   c.Reminders.Schedule,
				MaxAge:     c.Reminders.MaxAge,
				RunTimeout: c.Reminders.RunTimeout,
			},
		},
		Telemetry: container.TelemetryConfig{
			Metrics: c.Telemetry.Metrics,
			Tracing: telemetry.TracingConfig{
				Enabled:        c.Telemetry.Tracing,
				ServiceName:    c.Telemetry.ServiceName,
				ServiceVersion: c.Telemetry.ServiceVersion,
				OutputPath:     c.Telemetry.TraceOutput,
			},
		},
	}, nil
}
