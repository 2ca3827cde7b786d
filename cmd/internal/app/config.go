package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the single runtime configuration, built once at startup.
type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
	DB    DBConfig    `yaml:"db"`
	Token TokenConfig `yaml:"token"`
	Auth  AuthConfig  `yaml:"auth"`
	Redis RedisConfig `yaml:"redis"`

	// Accounts with these emails are promoted to admin at registration and login.
	AdminEmails []string `yaml:"admin_emails" env:"KITE_ADMIN_EMAILS" envSeparator:","`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr" env:"KITE_HTTP_ADDR"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"KITE_HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"KITE_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"KITE_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"KITE_HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"KITE_HTTP_SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" env:"KITE_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" env:"KITE_MAX_BODY_BYTES"`
	// Honor X-Forwarded-For / X-Real-IP for client addresses.
	TrustProxy bool `yaml:"trust_proxy" env:"KITE_TRUST_PROXY"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"KITE_LOG_LEVEL"`
	Format string `yaml:"format" env:"KITE_LOG_FORMAT"`
}

type DBConfig struct {
	// Empty selects the in-memory stores.
	URL         string `yaml:"url" env:"KITE_DATABASE_URL"`
	MaxConns    int32  `yaml:"max_conns" env:"KITE_DB_MAX_CONNS"`
	MinConns    int32  `yaml:"min_conns" env:"KITE_DB_MIN_CONNS"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"KITE_DB_AUTO_MIGRATE"`
	// /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool `yaml:"readiness_require_db" env:"KITE_READINESS_REQUIRE_DB"`
}

type TokenConfig struct {
	Format               string        `yaml:"format" env:"KITE_TOKEN_FORMAT"`
	Secret               string        `yaml:"secret" env:"KITE_TOKEN_SECRET"`
	TTL                  time.Duration `yaml:"ttl" env:"KITE_TOKEN_TTL"`
	PasetoV4SecretKeyHex string        `yaml:"paseto_v4_secret_key_hex" env:"KITE_PASETO_V4_SECRET_KEY_HEX"`
}

// AuthConfig holds per-IP limits for register and login. A zero max disables one.
type AuthConfig struct {
	RegisterMax    int           `yaml:"register_max" env:"KITE_AUTH_REGISTER_MAX"`
	RegisterWindow time.Duration `yaml:"register_window" env:"KITE_AUTH_REGISTER_WINDOW"`
	LoginMax       int           `yaml:"login_max" env:"KITE_AUTH_LOGIN_MAX"`
	LoginWindow    time.Duration `yaml:"login_window" env:"KITE_AUTH_LOGIN_WINDOW"`
}

// RedisConfig selects the shared rate limiter. Empty Addr keeps limits in process.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"KITE_REDIS_ADDR"`
	Password string `yaml:"password" env:"KITE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"KITE_REDIS_DB"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              "0.0.0.0:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxHeaderBytes:    1 << 20,
			MaxBodyBytes:      1 << 20,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		DB:  DBConfig{MaxConns: 10},
		Token: TokenConfig{
			Format: "jwt",
			TTL:    30 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			RegisterMax:    10,
			RegisterWindow: time.Hour,
			LoginMax:       20,
			LoginWindow:    5 * time.Minute,
		},
	}
}

// LoadConfig layers defaults, an optional YAML file, then KITE_* environment
// variables, and validates the result. path may be empty; KITE_CONFIG is used then.
func LoadConfig(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("KITE_CONFIG"))
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.HTTP.Addr = listenAddr(c.HTTP.Addr)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Token.Format = strings.ToLower(strings.TrimSpace(c.Token.Format))
	c.DB.URL = strings.TrimSpace(c.DB.URL)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)

	emails := c.AdminEmails[:0]
	for _, e := range c.AdminEmails {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	c.AdminEmails = emails
}

// listenAddr accepts a bare port ("8080") as well as host:port.
func listenAddr(s string) string {
	s = strings.TrimSpace(s)
	if _, err := strconv.Atoi(s); err == nil {
		return ":" + s
	}
	return s
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf("config: "+format, args...)) }

	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		add("http addr %q: %v", c.HTTP.Addr, err)
	}
	for name, d := range map[string]time.Duration{
		"read_header_timeout": c.HTTP.ReadHeaderTimeout,
		"read_timeout":        c.HTTP.ReadTimeout,
		"write_timeout":       c.HTTP.WriteTimeout,
		"idle_timeout":        c.HTTP.IdleTimeout,
		"shutdown_timeout":    c.HTTP.ShutdownTimeout,
	} {
		if d <= 0 {
			add("http %s must be positive", name)
		}
	}
	if c.HTTP.MaxHeaderBytes <= 0 || c.HTTP.MaxBodyBytes <= 0 {
		add("http header and body limits must be positive")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		add("log format %q (want json or text)", c.Log.Format)
	}

	if c.DB.MaxConns <= 0 || c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns {
		add("db conns: min=%d max=%d", c.DB.MinConns, c.DB.MaxConns)
	}
	if c.DB.AutoMigrate && c.DB.URL == "" {
		add("auto_migrate requires a database url")
	}

	if err := validateSecurity(c.Token); err != nil {
		errs = append(errs, err)
	}

	if c.Auth.RegisterMax < 0 || c.Auth.LoginMax < 0 {
		add("auth limits cannot be negative")
	}
	if (c.Auth.RegisterMax > 0 && c.Auth.RegisterWindow <= 0) || (c.Auth.LoginMax > 0 && c.Auth.LoginWindow <= 0) {
		add("auth limit windows must be positive")
	}
	if c.Redis.DB < 0 {
		add("redis db cannot be negative")
	}

	return errors.Join(errs...)
}
