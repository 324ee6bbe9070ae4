package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables (prefixed with IMAGEGEN_) take precedence over values
// from config files, which take precedence over the built-in defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config.yaml next to the binary; absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("IMAGEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the built-in defaults. Secrets (database URL,
// broker URL, API key) default to empty so viper knows the keys exist and
// can fill them from the environment; validation rejects the empty values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("broker.url", "")

	v.SetDefault("broker.task_queue", "generation_tasks")
	v.SetDefault("broker.result_queue", "generation_results")
	v.SetDefault("broker.reconnect_seconds", 5)

	v.SetDefault("worker.reconnect_seconds", 10)

	v.SetDefault("generation.gemini_api_key", "")
	v.SetDefault("generation.model", "imagen-3.0-generate-002")
	v.SetDefault("generation.images_dir", "images")
	v.SetDefault("generation.public_base_url", "http://localhost:8080/images")
}
