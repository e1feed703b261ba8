// Package config provides configuration management for the application
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// RedisConfig holds Redis/Valkey configuration. Redis backs both the
// negotiation record store and the cross-process message bus.
type RedisConfig struct {
	Enabled bool `envconfig:"REDIS_ENABLED" default:"false"`
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string `envconfig:"REDIS_URI" default:""`
	Host      string `envconfig:"REDIS_HOST" default:"localhost"`
	Port      string `envconfig:"REDIS_PORT" default:"6379"`
	Username  string `envconfig:"REDIS_USERNAME" default:""`
	Password  string `envconfig:"REDIS_PASSWORD" default:""`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"avtalt:"`
	// TTL for stored negotiation records (0 means no expiration)
	RecordTTL time.Duration `envconfig:"REDIS_RECORD_TTL" default:"168h"`
}

// NegotiationConfig holds protocol tuning for negotiations
type NegotiationConfig struct {
	// Horizon is the latest slot end time the scan will try, in time
	// units from the start of the meeting's date
	Horizon int `envconfig:"NEGOTIATION_HORIZON" default:"24"`
	// BusQueueSize bounds each bus node's inbox on the in-memory bus
	BusQueueSize int `envconfig:"NEGOTIATION_BUS_QUEUE_SIZE" default:"1024"`
}

// GetServerConfig loads server configuration from environment variables
func GetServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to load server config: %w", err)
	}
	return cfg, nil
}

// GetRedisConfig loads Redis/Valkey configuration from environment variables
func GetRedisConfig() (RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return RedisConfig{}, fmt.Errorf("failed to load redis config: %w", err)
	}
	return cfg, nil
}

// GetNegotiationConfig loads negotiation tuning from environment variables
func GetNegotiationConfig() (NegotiationConfig, error) {
	var cfg NegotiationConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return NegotiationConfig{}, fmt.Errorf("failed to load negotiation config: %w", err)
	}
	return cfg, nil
}
