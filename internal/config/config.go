// Package config provides the configuration structure for the
// musicgen-service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for the NATS transport.
type NATSConfig struct {
	URL             string `toml:"url"`
	GenerateSubject string `toml:"generate_subject"`
}

// ServiceConfig holds the generation service parameters.
type ServiceConfig struct {
	InferenceBinaryPath    string `toml:"inference_binary_path"`
	ModelPath              string `toml:"model_path"`
	AlternateSampleRate    int    `toml:"alternate_sample_rate"`
	QueueCapacity          int    `toml:"queue_capacity"`
	SyncMode               bool   `toml:"sync_mode"`
	GenerateTimeoutSeconds int    `toml:"generate_timeout_seconds"`
	UploadTimeoutSeconds   int    `toml:"upload_timeout_seconds"`
	WebhookTimeoutSeconds  int    `toml:"webhook_timeout_seconds"`
}

// HTTPConfig holds the HTTP gateway parameters.
type HTTPConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir   string `toml:"base_logs_dir"`
	InitErrorFile string `toml:"init_error_file"`
}

// Config is the root configuration structure.
type Config struct {
	NATS    NATSConfig    `toml:"nats"`
	Service ServiceConfig `toml:"service"`
	HTTP    HTTPConfig    `toml:"http"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration for the musicgen-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
