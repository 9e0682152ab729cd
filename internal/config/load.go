package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory; absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables: STAPI_SERVER_PORT -> server.port, etc.
	v.SetEnvPrefix("STAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values so that viper can pick up the
// corresponding environment variables even when no config file is present.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.max_retries", 5)
	v.SetDefault("task.retry_delay_seconds", 5)
	v.SetDefault("task.retry_backoff", true)
	v.SetDefault("task.always_eager", false)
	v.SetDefault("task.stuck_task_age_minutes", 30)
	v.SetDefault("task.stuck_task_check_minutes", 5)

	v.SetDefault("abstractapi.geolocation_url", "https://ipgeolocation.abstractapi.com/v1/")
	v.SetDefault("abstractapi.geolocation_key", "")
	v.SetDefault("abstractapi.holiday_url", "https://holidays.abstractapi.com/v1/")
	v.SetDefault("abstractapi.holiday_key", "")
	v.SetDefault("abstractapi.email_url", "https://emailvalidation.abstractapi.com/v1/")
	v.SetDefault("abstractapi.email_key", "")
}
