package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// EnvPrefix namespaces every environment override, e.g. APPROVAL_SERVER_PORT
const EnvPrefix = "APPROVAL"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Policy        PolicyConfig        `mapstructure:"policy"`
	Storage       StorageConfig       `mapstructure:"storage"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Reminders     RemindersConfig     `mapstructure:"reminders"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// PublicURL prefixes relative links in chat and email messages
	PublicURL string `mapstructure:"public_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the schema bundled with the binary
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AutoProvision bool          `mapstructure:"auto_provision"`
}

// PolicyConfig holds the approval tiers. File wins over inline tiers.
type PolicyConfig struct {
	File  string          `mapstructure:"file"`
	Tiers []domainwf.Tier `mapstructure:"tiers"`
}

// StorageConfig selects where receipts are kept
type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // local or s3
	LocalDir      string `mapstructure:"local_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	Bucket        string `mapstructure:"bucket"`
}

// AWSConfig holds credentials shared by S3, SES and SNS
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
}

// NotificationsConfig enables the delivery channels next to the in-app feed
type NotificationsConfig struct {
	Lark      LarkConfig      `mapstructure:"lark"`
	Email     EmailConfig     `mapstructure:"email"`
	Push      PushConfig      `mapstructure:"push"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Events    EventsConfig    `mapstructure:"events"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// EmailConfig holds SES sender settings
type EmailConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	From    string `mapstructure:"from"`
}

// PushConfig holds the SNS relay settings
type PushConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn"`
}

// WebSocketConfig toggles live delivery to open browser sessions
type WebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EventsConfig publishes committed events to NATS
type EventsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	ClientName string `mapstructure:"client_name"`
}

// RemindersConfig holds the stale-request reminder schedule
type RemindersConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// TelemetryConfig holds metrics and tracing switches
type TelemetryConfig struct {
	Metrics        bool   `mapstructure:"metrics"`
	Tracing        bool   `mapstructure:"tracing"`
	TraceOutput    string `mapstructure:"trace_output"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// Load reads configuration from an optional YAML file, a .env file and the
// environment. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports variables from path without overriding the environment
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.public_url", "http://localhost:3000")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.migrations_dir", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Auth defaults
	v.SetDefault("auth.issuer", "approval-workflow")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.auto_provision", false)
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("policy.file", "")

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "data/receipts")
	v.SetDefault("storage.public_base_url", "/receipts")
	v.SetDefault("storage.bucket", "")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.endpoint", "")

	// Channels are opt-in except the socket hub
	v.SetDefault("notifications.lark.enabled", false)
	v.SetDefault("notifications.lark.app_id", "")
	v.SetDefault("notifications.lark.app_secret", "")
	v.SetDefault("notifications.lark.base_url", "")
	v.SetDefault("notifications.email.enabled", false)
	v.SetDefault("notifications.email.from", "")
	v.SetDefault("notifications.push.enabled", false)
	v.SetDefault("notifications.push.topic_arn", "")
	v.SetDefault("notifications.websocket.enabled", true)
	v.SetDefault("notifications.events.enabled", false)
	v.SetDefault("notifications.events.url", "nats://127.0.0.1:4222")
	v.SetDefault("notifications.events.client_name", "approval-workflow")

	// Reminder defaults
	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.schedule", "0 9 * * 1-5")
	v.SetDefault("reminders.max_age", 72*time.Hour)
	v.SetDefault("reminders.run_timeout", 2*time.Minute)

	// Telemetry defaults
	v.SetDefault("telemetry.metrics", true)
	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.trace_output", "")
	v.SetDefault("telemetry.service_name", "approval-workflow")
	v.SetDefault("telemetry.service_version", "dev")
}

// bindEnvVars lets credentials come from their conventional names as well as
// the prefixed ones. The prefixed name wins.
func bindEnvVars(v *viper.Viper) error {
	aliases := map[string][]string{
		"auth.jwt_secret":               {"JWT_SECRET"},
		"database.dsn":                  {"DATABASE_URL"},
		"notifications.lark.app_id":     {"LARK_APP_ID"},
		"notifications.lark.app_secret": {"LARK_APP_SECRET"},
		"notifications.events.url":      {"NATS_URL"},
		"aws.region":                    {"AWS_REGION"},
		"aws.access_key_id":             {"AWS_ACCESS_KEY_ID"},
		"aws.secret_access_key":         {"AWS_SECRET_ACCESS_KEY"},
		"aws.endpoint":                  {"AWS_ENDPOINT_URL"},
	}
	replacer := strings.NewReplacer(".", "_")
	for key, names := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	return validation.Errors{
		"server":        c.Server.validate(),
		"database":      c.Database.validate(),
		"auth":          c.Auth.validate(),
		"storage":       c.Storage.validate(),
		"notifications": c.Notifications.validate(),
		"reminders":     c.Reminders.validate(),
	}.Filter()
}

func (s ServerConfig) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.ReadTimeout, validation.Required),
		validation.Field(&s.WriteTimeout, validation.Required),
	)
}

func (d DatabaseConfig) validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&d.Path, validation.When(d.Driver == "sqlite", validation.Required)),
		validation.Field(&d.DSN, validation.When(d.Driver == "postgres", validation.Required)),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
	)
}

func (a AuthConfig) validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.JWTSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.TokenTTL, validation.Required),
	)
}

func (s StorageConfig) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In("local", "s3")),
		validation.Field(&s.LocalDir, validation.When(s.Backend == "local", validation.Required)),
		validation.Field(&s.Bucket, validation.When(s.Backend == "s3", validation.Required)),
	)
}

func (n NotificationsConfig) validate() error {
	return validation.Errors{
		"lark": validation.ValidateStruct(&n.Lark,
			validation.Field(&n.Lark.AppID, validation.When(n.Lark.Enabled, validation.Required)),
			validation.Field(&n.Lark.AppSecret, validation.When(n.Lark.Enabled, validation.Required)),
		),
		"email": validation.ValidateStruct(&n.Email,
			validation.Field(&n.Email.From, validation.When(n.Email.Enabled, validation.Required)),
		),
		"push": validation.ValidateStruct(&n.Push,
			validation.Field(&n.Push.TopicARN, validation.When(n.Push.Enabled, validation.Required)),
		),
		"events": validation.ValidateStruct(&n.Events,
			validation.Field(&n.Events.URL, validation.When(n.Events.Enabled, validation.Required)),
		),
	}.Filter()
}

func (r RemindersConfig) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Schedule, validation.When(r.Enabled, validation.Required)),
		validation.Field(&r.MaxAge, validation.When(r.Enabled, validation.Required)),
	)
}
