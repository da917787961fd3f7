package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config aggregates the service configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Gemini  GeminiConfig
	Session SessionConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Host               string        `env:"HOST"                 envDefault:"127.0.0.1"`
	Port               string        `env:"PORT"                 envDefault:"7860"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT"     envDefault:"10s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"      envSeparator:","`

	// Addr is derived from Host and Port by Load.
	Addr string `env:"-"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// GeminiConfig describes the upstream generative model. APIKey may be empty;
// callers can then pass a key per request.
type GeminiConfig struct {
	APIKey  string        `env:"GEMINI_API_KEY"`
	Model   string        `env:"GEMINI_MODEL"    envDefault:"gemini-1.5-flash"`
	BaseURL string        `env:"GEMINI_BASE_URL"`
	Timeout time.Duration `env:"GEMINI_TIMEOUT"  envDefault:"30s"`
}

// SessionConfig bounds the in-memory chat sessions. Zero TTL or Max disables
// the respective limit.
type SessionConfig struct {
	TTL       time.Duration `env:"SESSION_TTL"        envDefault:"24h"`
	Max       int           `env:"SESSION_MAX"        envDefault:"1000"`
	SweepSpec string        `env:"SESSION_SWEEP_SPEC" envDefault:"@every 10m"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Gemini.APIKey = strings.TrimSpace(cfg.Gemini.APIKey)

	addr, err := listenAddr(cfg.Server.Host, cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if _, err := cfg.Log.SlogLevel(); err != nil {
		return nil, err
	}
	if cfg.Session.TTL < 0 {
		return nil, fmt.Errorf("invalid SESSION_TTL value %q", cfg.Session.TTL)
	}
	if cfg.Session.Max < 0 {
		return nil, fmt.Errorf("invalid SESSION_MAX value %d", cfg.Session.Max)
	}
	if cfg.Gemini.Timeout <= 0 {
		return nil, fmt.Errorf("invalid GEMINI_TIMEOUT value %q", cfg.Gemini.Timeout)
	}

	return &cfg, nil
}

// listenAddr combines HOST and PORT. PORT may also carry a full address such
// as ":7860" or "0.0.0.0:7860", in which case HOST is ignored.
func listenAddr(host, port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "7860"
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return net.JoinHostPort(strings.TrimSpace(host), port), nil
}

// SlogLevel parses LOG_LEVEL.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: %w", c.Level, err)
	}
	return level, nil
}
