package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Polling  PollingConfig  `mapstructure:"polling"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// PublicBaseURL is this service's externally reachable base URL,
	// embedded into worker callback URLs.
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains authentication and authorization settings for the
// capability-token gate on state-changing endpoints.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetimeMinutes is the access token lifetime.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// WorkerConfig describes the external task worker API.
type WorkerConfig struct {
	// BaseURL is the worker endpoint prefix; tasks dispatch to {BaseURL}/{type}.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// APIKey is sent as a bearer token on every dispatch.
	APIKey string `mapstructure:"api_key" validate:"required"`
}

// PollingConfig controls the decision-polling cron.
type PollingConfig struct {
	// CronSchedule is a standard cron expression for the batch poll run.
	// Empty disables the in-process cron.
	CronSchedule string `mapstructure:"cron_schedule"`
}
