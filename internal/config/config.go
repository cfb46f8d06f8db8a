// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Merge    MergeConfig
	Upload   UploadConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the merged download (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings. Persistence is optional:
// with no URL, merged rows are not stored.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// MergeConfig holds defaults for every merge. CLI flags and form fields
// override them per merge.
type MergeConfig struct {
	// FillValue is written for columns a row does not have (default: empty)
	FillValue string `env:"MERGE_FILL_VALUE"`

	// StrictHeader rejects inputs with columns the first input lacks (default: false)
	StrictHeader bool `env:"MERGE_STRICT_HEADER" default:"false"`

	// Delimiter is the input delimiter: auto, comma, tab, semicolon or one character (default: auto)
	Delimiter string `env:"MERGE_DELIMITER" default:"auto"`

	// Encoding is the input encoding or auto (default: auto)
	Encoding string `env:"MERGE_ENCODING" default:"auto"`

	// OutputDelimiter is the output delimiter (default: ,)
	OutputDelimiter string `env:"MERGE_OUTPUT_DELIMITER" default:","`

	// OutputEncoding is the output encoding (default: utf-8)
	OutputEncoding string `env:"MERGE_OUTPUT_ENCODING" default:"utf-8"`

	// SkipLines is how many records precede the header in every input (default: 0)
	SkipLines int `env:"MERGE_SKIP_LINES" default:"0"`

	// HeaderMap is the path of a YAML or JSON header alias file
	HeaderMap string `env:"MERGE_HEADER_MAP"`

	// NormalizeHeaders lowercases headers and removes spaces (default: false)
	NormalizeHeaders bool `env:"MERGE_NORMALIZE_HEADERS" default:"false"`

	// SkipBlankRows drops rows whose fields are all blank (default: false)
	SkipBlankRows bool `env:"MERGE_SKIP_BLANK_ROWS" default:"false"`

	// InvalidUTF8 is error or replace (default: error)
	InvalidUTF8 string `env:"MERGE_INVALID_UTF8" default:"error"`
}

// UploadConfig holds web upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed size of one uploaded file in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxFiles is the maximum number of files in one merge request (default: 50)
	MaxFiles int `env:"UPLOAD_MAX_FILES" default:"50"`

	// MaxConcurrent is the maximum number of merges running at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a merge slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}
