// Package config provides configuration for the filmroom server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".filmroom"

	EnvPort        = "FILMROOM_PORT"
	EnvLogLevel    = "FILMROOM_LOG_LEVEL"
	EnvDataDir     = "FILMROOM_DATA_DIR"
	EnvMediaSecret = "FILMROOM_MEDIA_SECRET"
	EnvURLTTL      = "FILMROOM_URL_TTL_S"
	EnvSessionTTL  = "FILMROOM_SESSION_TTL_S"
	EnvFFprobe     = "FILMROOM_FFPROBE"

	DBFilename = "filmroom.db"

	// Signed playback URLs stay valid long enough for a review
	// session but not much longer.
	DefaultURLTTL = 15 * time.Minute
	// Idle sync sessions are swept after this long without input.
	DefaultSessionTTL = 30 * time.Minute
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	MediaSecret() string
	URLTTL() time.Duration
	SessionTTL() time.Duration
	FFprobePath() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port        int
	logLevel    string
	dataDir     string
	mediaSecret string
	urlTTL      time.Duration
	sessionTTL  time.Duration
	ffprobePath string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:       DefaultPort,
		logLevel:   DefaultLogLevel,
		dataDir:    defaultDataDir(),
		urlTTL:     DefaultURLTTL,
		sessionTTL: DefaultSessionTTL,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.mediaSecret = os.Getenv(EnvMediaSecret)

	if ttl := os.Getenv(EnvURLTTL); ttl != "" {
		seconds, err := strconv.Atoi(ttl)
		if err != nil || seconds < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive number of seconds", EnvURLTTL)
		}
		cfg.urlTTL = time.Duration(seconds) * time.Second
	}

	if ttl := os.Getenv(EnvSessionTTL); ttl != "" {
		seconds, err := strconv.Atoi(ttl)
		if err != nil || seconds < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive number of seconds", EnvSessionTTL)
		}
		cfg.sessionTTL = time.Duration(seconds) * time.Second
	}

	cfg.ffprobePath = os.Getenv(EnvFFprobe)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// MediaSecret returns the key used to sign playback URLs. Empty means
// a per-boot random key is generated at startup.
func (c *EnvConfig) MediaSecret() string {
	return c.mediaSecret
}

// URLTTL returns how long a signed playback URL stays valid
func (c *EnvConfig) URLTTL() time.Duration {
	return c.urlTTL
}

// SessionTTL returns how long an idle sync session is kept open
func (c *EnvConfig) SessionTTL() time.Duration {
	return c.sessionTTL
}

// FFprobePath returns the ffprobe binary to use ("" means $PATH lookup)
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
