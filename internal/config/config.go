package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth"        validate:"required"`
	Task        TaskConfig        `mapstructure:"task"        validate:"required"`
	AbstractAPI AbstractAPIConfig `mapstructure:"abstractapi" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
}

// TaskConfig contains the background task runner settings.
//
// MaxRetries and RetryDelaySeconds govern the bounded retry policy for
// retryable task faults: a task is attempted at most MaxRetries+1 times,
// waiting RetryDelaySeconds*2^attempt between attempts when RetryBackoff
// is enabled, or a constant RetryDelaySeconds otherwise.
//
// AlwaysEager makes Submit execute tasks synchronously in the caller's
// goroutine instead of dispatching to the worker pool. Used in tests.
type TaskConfig struct {
	WorkerCount            int  `mapstructure:"worker_count"             validate:"required,gt=0"`
	QueueSize              int  `mapstructure:"queue_size"               validate:"required,gt=0"`
	MaxRetries             int  `mapstructure:"max_retries"              validate:"gte=0"`
	RetryDelaySeconds      int  `mapstructure:"retry_delay_seconds"      validate:"gte=0"`
	RetryBackoff           bool `mapstructure:"retry_backoff"`
	AlwaysEager            bool `mapstructure:"always_eager"`
	StuckTaskAgeMinutes    int  `mapstructure:"stuck_task_age_minutes"   validate:"gte=0"`
	StuckTaskCheckMinutes  int  `mapstructure:"stuck_task_check_minutes" validate:"gte=0"`
}

// AbstractAPIConfig contains the base URLs and API keys for the
// AbstractAPI providers used by the enrichment pipeline and signup
// email validation.
type AbstractAPIConfig struct {
	GeolocationURL string `mapstructure:"geolocation_url" validate:"required,url"`
	GeolocationKey string `mapstructure:"geolocation_key"`
	HolidayURL     string `mapstructure:"holiday_url"     validate:"required,url"`
	HolidayKey     string `mapstructure:"holiday_key"`
	EmailURL       string `mapstructure:"email_url"       validate:"required,url"`
	EmailKey       string `mapstructure:"email_key"`
}
