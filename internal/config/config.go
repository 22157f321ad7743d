package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// AuthConfig carries token signing and session cookie settings.
type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	CookieMaxAge time.Duration
	// UniformLoginErrors answers unknown emails with the same 401 as a wrong
	// password instead of a 404.
	UniformLoginErrors bool
}

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string
		Environment    string
		AllowedOrigins []string
	}
	Database struct {
		Path string
	}
	Log struct {
		Level  string
		Format string
	}
	Auth AuthConfig
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

type rawConfig struct {
	Server struct {
		Addr           string
		Environment    string
		AllowedOrigins string
	}
	Database struct {
		Path string
	}
	Log struct {
		Level  string
		Format string
	}
	Auth struct {
		JWTSecret          string
		TokenTTL           string
		CookieMaxAge       string
		UniformLoginErrors bool
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	_ = godotenv.Load() // optional .env, never overrides the real environment

	v := viper.New()
	v.SetEnvPrefix("AUTHFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.allowedorigins", "http://localhost:3000")
	v.SetDefault("database.path", "data/authflow.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", "90d")
	v.SetDefault("auth.cookiemaxage", "30d")
	v.SetDefault("auth.uniformloginerrors", false)

	// names used by existing deployments of the node service
	_ = v.BindEnv("auth.jwtsecret", "AUTHFLOW_AUTH_JWTSECRET", "JWT_SECRET")
	_ = v.BindEnv("auth.tokenttl", "AUTHFLOW_AUTH_TOKENTTL", "JWT_EXPIRES_IN")
	_ = v.BindEnv("server.environment", "AUTHFLOW_SERVER_ENVIRONMENT", "NODE_ENV")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return build(raw)
}

func build(raw rawConfig) (Config, error) {
	var cfg Config
	cfg.Server.Addr = raw.Server.Addr
	cfg.Server.Environment = strings.ToLower(strings.TrimSpace(raw.Server.Environment))
	cfg.Server.AllowedOrigins = splitList(raw.Server.AllowedOrigins)
	cfg.Database.Path = raw.Database.Path
	cfg.Log.Level = raw.Log.Level
	cfg.Log.Format = raw.Log.Format

	cfg.Auth.JWTSecret = strings.TrimSpace(raw.Auth.JWTSecret)
	cfg.Auth.UniformLoginErrors = raw.Auth.UniformLoginErrors

	ttl, err := ParseDuration(raw.Auth.TokenTTL)
	if err != nil {
		return Config{}, fmt.Errorf("auth token ttl: %w", err)
	}
	cfg.Auth.TokenTTL = ttl

	maxAge, err := ParseDuration(raw.Auth.CookieMaxAge)
	if err != nil {
		return Config{}, fmt.Errorf("auth cookie max age: %w", err)
	}
	cfg.Auth.CookieMaxAge = maxAge

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	if c.Auth.CookieMaxAge <= 0 {
		return fmt.Errorf("auth cookie max age must be positive")
	}
	return nil
}

// legacyDuration matches the single-unit strings the node service accepted
// for JWT_EXPIRES_IN ("90d", "7 days", "1.5h", "120").
var legacyDuration = regexp.MustCompile(`(?i)^(-?\d*\.?\d+) *(milliseconds?|msecs?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w|years?|yrs?|y)?$`)

var legacyUnits = map[string]string{
	"millisecond": "ms", "milliseconds": "ms", "msec": "ms", "msecs": "ms", "ms": "ms",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s", "s": "s",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m", "m": "m",
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h", "h": "h",
	"day": "d", "days": "d", "d": "d",
	"week": "w", "weeks": "w", "w": "w",
	"year": "y", "years": "y", "yr": "y", "yrs": "y", "y": "y",
}

const year = time.Duration(365.25 * 24 * float64(time.Hour))

// ParseDuration accepts the node service's duration strings, where a bare
// number means milliseconds, and compound Go-style values with d and w
// units such as "1w2d" or "1h30m".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if m := legacyDuration.FindStringSubmatch(s); m != nil {
		unit := legacyUnits[strings.ToLower(m[2])]
		switch unit {
		case "":
			unit = "ms"
		case "y":
			n, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			return time.Duration(n * float64(year)), nil
		}
		s = m[1] + unit
	}

	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
