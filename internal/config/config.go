// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	Mesa    MesaConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxParses is the number of profiles parsed in parallel (default: 4)
	MaxParses int `env:"SERVER_MAX_PARSES" default:"4"`

	// ParseWait is how long a request waits for a parse slot (default: 30s)
	ParseWait time.Duration `env:"SERVER_PARSE_WAIT" default:"30s"`
}

// MesaConfig describes which logs directories to serve and how to read them.
type MesaConfig struct {
	// LogDirs is a comma-separated list of logs directories.
	// Supports MESA_LOG_DIRS and MESA_LOGS_DIR.
	LogDirs []string `env:"MESA_LOG_DIRS" envAlt:"MESA_LOGS_DIR"`

	// RunsFile is an optional YAML manifest of named runs
	RunsFile string `env:"MESA_RUNS_FILE"`

	// HistoryFile is the history file name inside each directory (default: history.data)
	HistoryFile string `env:"MESA_HISTORY_FILE" default:"history.data"`

	// IndexFile is the profile index file name (default: profiles.index)
	IndexFile string `env:"MESA_INDEX_FILE" default:"profiles.index"`

	// ProfilePrefix and ProfileSuffix give profile files as prefix<N>.suffix
	ProfilePrefix string `env:"MESA_PROFILE_PREFIX" default:"profile"`
	ProfileSuffix string `env:"MESA_PROFILE_SUFFIX" default:"data"`

	// MemoizeProfiles keeps parsed profiles in memory (default: true)
	MemoizeProfiles bool `env:"MESA_MEMOIZE_PROFILES" default:"true"`

	// ScrubRestarts drops history rows superseded by a restart (default: true)
	ScrubRestarts bool `env:"MESA_SCRUB_RESTARTS" default:"true"`

	// IndexLayout is the column order of profile index lines
	// (default: model,profile,priority)
	IndexLayout string `env:"MESA_INDEX_LAYOUT" default:"model,profile,priority"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled mounts /metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
