package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Client   ClientConfig   `mapstructure:"client" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects the task and company storage backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	// URL is a postgres connection string or a SQLite file path.
	URL string `mapstructure:"url" validate:"required"`
}

// WorkerConfig tunes the task daemon polling loops.
type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	// StaleTaskTimeout fails running tasks that have not been updated for
	// this long. Zero disables the check.
	StaleTaskTimeout       time.Duration `mapstructure:"stale_task_timeout" validate:"gte=0"`
	StaleTaskCheckInterval time.Duration `mapstructure:"stale_task_check_interval" validate:"gt=0"`
}

// ClientConfig is used by jobsearchctl to reach the API server.
type ClientConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxWait      time.Duration `mapstructure:"max_wait" validate:"gt=0"`
}

// LLMConfig contains all LLM integration related settings.
// The API key is only checked when a generator is constructed, so the
// server and client can run without one.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
	// ResearchPromptPath and ReplyPromptPath override the built-in prompt
	// templates when set.
	ResearchPromptPath string `mapstructure:"research_prompt_path" validate:"omitempty,file"`
	ReplyPromptPath    string `mapstructure:"reply_prompt_path" validate:"omitempty,file"`
	MaxRetries         int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}
