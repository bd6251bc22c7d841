package config

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Environment    string
	LogLevel       zerolog.Level
	LogFile        string
	HTTPTimeout    time.Duration
	ListenPort     int
	BackendBaseURL string
	MapboxToken    string
	TokenFile      string
	ReloadDelay    time.Duration
}

type Option func(*Config)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(level)
		if err != nil {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

// WithLogFile enables a rotating log file sink
func WithLogFile(path string) Option {
	return func(c *Config) {
		c.LogFile = path
	}
}

// WithHTTPTimeout allows setting the backend HTTP timeout
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

// WithListenPort allows setting the console's listen port
func WithListenPort(port int) Option {
	return func(c *Config) {
		c.ListenPort = port
	}
}

// WithBackendBaseURL allows setting the station backend base URL
func WithBackendBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.BackendBaseURL = baseURL
	}
}

// WithMapboxToken allows setting the map rendering credential
func WithMapboxToken(token string) Option {
	return func(c *Config) {
		c.MapboxToken = token
	}
}

// WithTokenFile allows setting where the session token is persisted
func WithTokenFile(path string) Option {
	return func(c *Config) {
		c.TokenFile = path
	}
}

// WithReloadDelay allows setting the viewport debounce delay
func WithReloadDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.ReloadDelay = delay
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment:    "production",
		LogLevel:       zerolog.InfoLevel,
		HTTPTimeout:    10 * time.Second,
		ListenPort:     8080,
		BackendBaseURL: "http://localhost:5001/api",
		TokenFile:      "velib-session.token",
		ReloadDelay:    500 * time.Millisecond,
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	var writers []io.Writer
	if c.Environment == "local" || c.Environment == "development" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		writers = append(writers, os.Stdout)
	}

	if c.LogFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return New(
		WithEnvironment(getEnvOrDefault("ENV", "production")),
		WithLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		WithLogFile(getEnvOrDefault("LOG_FILE", "")),
		WithHTTPTimeout(getDurationEnvOrDefault("HTTP_TIMEOUT", 10*time.Second)),
		WithListenPort(getIntEnvOrDefault("PORT", 8080)),
		WithBackendBaseURL(getEnvOrDefault("BACKEND_URL", "http://localhost:5001/api")),
		WithMapboxToken(getEnvOrDefault("MAPBOX_TOKEN", "")),
		WithTokenFile(getEnvOrDefault("SESSION_TOKEN_FILE", "velib-session.token")),
		WithReloadDelay(getDurationEnvOrDefault("RELOAD_DELAY", 500*time.Millisecond)),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
