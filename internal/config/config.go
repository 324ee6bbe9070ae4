package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Broker     BrokerConfig     `mapstructure:"broker"     validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker"     validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
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

// BrokerConfig contains the message broker settings shared by the gateway
// and the worker: the AMQP endpoint, the two durable queue names, and the
// fixed delay before a consumer loop retries a failed connection.
type BrokerConfig struct {
	URL              string `mapstructure:"url"               validate:"required"`
	TaskQueue        string `mapstructure:"task_queue"        validate:"required"`
	ResultQueue      string `mapstructure:"result_queue"      validate:"required"`
	ReconnectSeconds int    `mapstructure:"reconnect_seconds" validate:"required,gt=0"`
}

// WorkerConfig contains settings specific to the inference worker process.
type WorkerConfig struct {
	ReconnectSeconds int `mapstructure:"reconnect_seconds" validate:"required,gt=0"`
}

// GenerationConfig contains the inference engine settings.
type GenerationConfig struct {
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	Model         string `mapstructure:"model"           validate:"required"`
	ImagesDir     string `mapstructure:"images_dir"      validate:"required"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required"`
}
