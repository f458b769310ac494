// Package config loads settings for both binaries.
//
// PRECEDENCE (highest first):
//  1. Command-line flags   --backend.url=http://backend:9090
//  2. Environment          SKILLSWAP_BACKEND_URL=http://backend:9090
//  3. Flag defaults
//
// Flags are declared with pflag, bound into a viper instance, and decoded
// into a struct that is then checked with the shared validator. Each Load
// uses its own FlagSet and viper instance so tests can load in parallel.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sakif/skillswap/internal/validate"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "SKILLSWAP"

// Config is the frontend server's configuration.
type Config struct {
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Env      string `mapstructure:"env" validate:"oneof=development production"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Backend struct {
		URL     string        `mapstructure:"url" validate:"required,url"`
		Secret  string        `mapstructure:"secret" validate:"required,min=16"`
		Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	} `mapstructure:"backend"`

	Session struct {
		Secret string        `mapstructure:"secret" validate:"required,min=16"`
		TTL    time.Duration `mapstructure:"ttl" validate:"gt=0"`
	} `mapstructure:"session"`

	Auth struct {
		DevLogin bool `mapstructure:"dev_login"`
		GitHub   struct {
			ClientID     string `mapstructure:"client_id"`
			ClientSecret string `mapstructure:"client_secret" validate:"required_with=ClientID"`
			CallbackURL  string `mapstructure:"callback_url" validate:"omitempty,url"`
		} `mapstructure:"github"`
	} `mapstructure:"auth"`

	Cache struct {
		StaleTime time.Duration `mapstructure:"stale_time" validate:"gt=0"`
		IdleTTL   time.Duration `mapstructure:"idle_ttl" validate:"gt=0"`
	} `mapstructure:"cache"`

	Media struct {
		TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
	} `mapstructure:"media"`

	RateLimit struct {
		PerMinute int `mapstructure:"per_minute" validate:"min=0"`
	} `mapstructure:"ratelimit"`

	OTel struct {
		Enabled     bool   `mapstructure:"enabled"`
		Endpoint    string `mapstructure:"endpoint"`
		ServiceName string `mapstructure:"service_name" validate:"required"`
	} `mapstructure:"otel"`
}

// Load parses args (without the program name) and the environment.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("skillswap", pflag.ContinueOnError)

	fs.Int("port", 8080, "listening port")
	fs.String("env", "development", "runtime environment, 'development' or 'production'")
	fs.String("log_level", "info", "logging level: debug, info, warn or error")

	fs.String("backend.url", "http://localhost:9090", "base URL of the lesson backend")
	fs.String("backend.secret", "", "secret shared with the backend for caller tokens (required)")
	fs.Duration("backend.timeout", 60*time.Second, "timeout of one backend call")

	fs.String("session.secret", "", "secret signing session cookies (required)")
	fs.Duration("session.ttl", 24*time.Hour, "session lifetime")

	fs.Bool("auth.dev_login", false, "offer a development sign-in that needs no account")
	fs.String("auth.github.client_id", "", "GitHub OAuth client ID")
	fs.String("auth.github.client_secret", "", "GitHub OAuth client secret")
	fs.String("auth.github.callback_url", "", "GitHub OAuth callback URL (default http://localhost:<port>/auth/github/callback)")

	fs.Duration("cache.stale_time", 30*time.Second, "how long a backend read is served from memory")
	fs.Duration("cache.idle_ttl", 15*time.Minute, "how long an unused identity keeps its cache")
	fs.Duration("media.ttl", 30*time.Minute, "lifetime of a video playback URL")
	fs.Int("ratelimit.per_minute", 30, "writes allowed per identity per minute, 0 disables the limit")

	fs.Bool("otel.enabled", false, "export traces over OTLP/HTTP")
	fs.String("otel.endpoint", "localhost:4318", "OTLP/HTTP collector endpoint")
	fs.String("otel.service_name", "skillswap-web", "service name reported in traces")

	v, err := bind(fs, args)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if cfg.Auth.GitHub.CallbackURL == "" {
		cfg.Auth.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if err := check(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.Auth.GitHub.ClientID != ""
}

// IsProduction reports whether cookies must be Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level converts LogLevel for slog.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// DevBackendConfig is the development backend's configuration.
type DevBackendConfig struct {
	Port     int      `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel string   `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	DBPath   string   `mapstructure:"db_path" validate:"required"`
	Admins   []string `mapstructure:"admins"`
	Backend  struct {
		Secret string `mapstructure:"secret" validate:"required,min=16"`
	} `mapstructure:"backend"`
}

// LoadDevBackend parses args and the environment for cmd/devbackend.
func LoadDevBackend(args []string) (*DevBackendConfig, error) {
	fs := pflag.NewFlagSet("devbackend", pflag.ContinueOnError)

	fs.Int("port", 9090, "listening port")
	fs.String("log_level", "info", "logging level: debug, info, warn or error")
	fs.String("db_path", "data/devbackend.db", "SQLite database file, ':memory:' for a throwaway store")
	fs.StringSlice("admins", nil, "identities that get the admin role, comma separated")
	fs.String("backend.secret", "", "secret shared with the frontend for caller tokens (required)")

	v, err := bind(fs, args)
	if err != nil {
		return nil, err
	}

	cfg := new(DevBackendConfig)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := check(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLevel maps a level name to slog.Level; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func bind(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: binding flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func check(cfg any) error {
	fields := validate.New().Fields(cfg)
	if len(fields) == 0 {
		return nil
	}
	msg := make([]string, 0, len(fields))
	for _, f := range fields {
		msg = append(msg, f.Field+": "+f.Message)
	}
	return fmt.Errorf("config: invalid settings:\n%s", strings.Join(msg, "\n"))
}
