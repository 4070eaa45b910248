// Package config loads configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"
)

// Backends a tree can mirror.
const (
	BackendDir    = "dir"
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// Config holds the browser's settings. Command-line flags override it.
type Config struct {
	// Remote store
	Backend  string
	RootName string
	DirPath  string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
	S3UseSSL    bool

	// Logging. The terminal belongs to the UI, so logs go to a file.
	LogLevel  string
	LogFormat string
	LogOutput string

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string

	// PrefetchBytes is the size up to which files are downloaded as soon as
	// their directory is listed. 0 disables prefetching.
	PrefetchBytes int64
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Backend:       envOr("REMOTETREE_BACKEND", BackendDir),
		RootName:      envOr("REMOTETREE_ROOT", "remote"),
		DirPath:       envOr("REMOTETREE_DIR", "."),
		S3Endpoint:    envOr("S3_ENDPOINT", "localhost:9000"),
		S3Bucket:      envOr("S3_BUCKET", "remotetree"),
		S3AccessKey:   envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:   envOr("S3_SECRET_KEY", "minioadmin"),
		S3Prefix:      envOr("S3_PREFIX", ""),
		S3UseSSL:      envBool("S3_USE_SSL", false),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		LogOutput:     envOr("LOG_OUTPUT", "remotetree.log"),
		MetricsAddr:   envOr("METRICS_ADDR", ""),
		PrefetchBytes: envInt64("REMOTETREE_PREFETCH_BYTES", 0),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDir, BackendMemory, BackendS3:
	default:
		return errors.WithContext(
			errors.New(errors.CodeInvalidConfig, "unknown backend"),
			"backend", c.Backend,
		)
	}
	if c.RootName == "" || c.RootName == "." || strings.Contains(c.RootName, "/") {
		return errors.WithContext(
			errors.New(errors.CodeInvalidConfig, "root name must be a single path segment"),
			"root", c.RootName,
		)
	}
	if c.Backend == BackendS3 && (c.S3Endpoint == "" || c.S3Bucket == "") {
		return errors.New(errors.CodeInvalidConfig, "S3_ENDPOINT and S3_BUCKET are required for the s3 backend")
	}
	if c.PrefetchBytes < 0 {
		return errors.New(errors.CodeInvalidConfig, "prefetch size must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
