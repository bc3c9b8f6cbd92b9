package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/internal/logging"
)

// HTTPConfig groups listener and request limits.
type HTTPConfig struct {
	Addr                string        `mapstructure:"http_addr"`
	ReadHeaderTimeout   time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodyBytes int64         `mapstructure:"max_request_body_bytes"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// CORSConfig groups browser cross-origin settings.
type CORSConfig struct {
	EnableCORS           bool     `mapstructure:"enable_cors"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`
}

// RedisConfig selects the Redis server. An empty address starts an
// in-process miniredis, which is only suitable for development.
type RedisConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// FormSettings maps onto authform.Config.
type FormSettings struct {
	Locale                string        `mapstructure:"locale"`
	MaxEmailChecks        int           `mapstructure:"max_email_checks"`
	MinPasswordLength     int           `mapstructure:"min_password_length"`
	LookupTimeout         time.Duration `mapstructure:"lookup_timeout"`
	LookupThrottleEnabled bool          `mapstructure:"lookup_throttle_enabled"`
	LookupThrottleMax     int           `mapstructure:"lookup_throttle_max"`
	LookupThrottleWindow  time.Duration `mapstructure:"lookup_throttle_window"`
	SubmitThrottleEnabled bool          `mapstructure:"submit_throttle_enabled"`
	SubmitThrottleMax     int           `mapstructure:"submit_throttle_max"`
	SubmitThrottleWindow  time.Duration `mapstructure:"submit_throttle_window"`
	FormIdleTTL           time.Duration `mapstructure:"form_idle_ttl"`
	MaxForms              int           `mapstructure:"max_forms"`
}

// SessionConfig controls the token issued after login.
type SessionConfig struct {
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	SessionSigningKey string        `mapstructure:"session_signing_key"`
	SessionIssuer     string        `mapstructure:"session_issuer"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
	ResetTTL          time.Duration `mapstructure:"reset_ttl"`
}

// AppConfig is the merged daemon configuration.
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	HTTP    HTTPConfig    `mapstructure:",squash"`
	CORS    CORSConfig    `mapstructure:",squash"`
	Redis   RedisConfig   `mapstructure:",squash"`
	Form    FormSettings  `mapstructure:",squash"`
	Session SessionConfig `mapstructure:",squash"`
}

// Dump returns indented JSON with secrets redacted.
func (c AppConfig) Dump() string {
	cp := c
	if cp.Redis.RedisPassword != "" {
		cp.Redis.RedisPassword = "[redacted]"
	}
	if cp.Session.SessionSigningKey != "" {
		cp.Session.SessionSigningKey = "[redacted]"
	}
	b, _ := json.MarshalIndent(cp, "", "  ")
	return string(b)
}

// engineConfig translates the daemon settings into an engine config.
func (c AppConfig) engineConfig() authform.Config {
	cfg := authform.DefaultConfig()
	cfg.Locale = c.Form.Locale
	cfg.Form.MaxEmailChecks = c.Form.MaxEmailChecks
	cfg.Form.MinPasswordLength = c.Form.MinPasswordLength
	cfg.Form.LookupTimeout = c.Form.LookupTimeout

	cfg.LookupThrottle.Enabled = c.Form.LookupThrottleEnabled
	cfg.LookupThrottle.MaxAttempts = c.Form.LookupThrottleMax
	cfg.LookupThrottle.Window = c.Form.LookupThrottleWindow
	cfg.SubmitThrottle.Enabled = c.Form.SubmitThrottleEnabled
	cfg.SubmitThrottle.MaxAttempts = c.Form.SubmitThrottleMax
	cfg.SubmitThrottle.Window = c.Form.SubmitThrottleWindow

	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

// Load merges defaults, .env, config.* files, AUTHFORM_* env vars and
// explicitly set flags. Highest wins: flags > env > config file > defaults.
func Load(fs *pflag.FlagSet, args []string, logger *zap.Logger) (*AppConfig, error) {
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info("loaded .env file")
	}

	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("AUTHFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := "config." + ext
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			if logger != nil {
				logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			if logger != nil {
				logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("loaded config file", zap.String("file", file))
		}
	}

	setDefaults(v)

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	if err := normalizeListKeys(v, "cors_allowed_origins"); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateAppConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defineFlags(fs *pflag.FlagSet) {
	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "info", "Log level")

	fs.String("http_addr", ":8080", "HTTP listen address")
	fs.Duration("read_header_timeout", 5*time.Second, "HTTP read header timeout")
	fs.Duration("shutdown_timeout", 10*time.Second, "Graceful shutdown timeout")
	fs.Int64("max_request_body_bytes", 64<<10, "Max HTTP request body size in bytes")
	fs.Bool("trust_proxy_headers", false, "Take the client IP from X-Forwarded-For/X-Real-IP (trusted proxy only)")

	fs.Bool("enable_cors", false, "Enable CORS")
	fs.String("cors_allowed_origins", "", `JSON array of origins, e.g. '["https://app.example"]'`)
	fs.Bool("cors_allow_credentials", true, "CORS: allow credentials")
	fs.Int("cors_max_age", 300, "CORS: max age seconds")

	fs.String("redis_addr", "", "Redis address (empty runs an in-process miniredis)")
	fs.String("redis_password", "", "Redis password")
	fs.Int("redis_db", 0, "Redis database")

	fs.String("locale", authform.LocalePTBR, "Default message locale")
	fs.Int("max_email_checks", 3, "Blur-time availability checks per form")
	fs.Int("min_password_length", 6, "Minimum registration password length")
	fs.Duration("lookup_timeout", 5*time.Second, "Per-lookup timeout")
	fs.Bool("lookup_throttle_enabled", false, "Throttle availability lookups per client IP")
	fs.Int("lookup_throttle_max", 30, "Lookups per window per client IP")
	fs.Duration("lookup_throttle_window", 10*time.Minute, "Lookup throttle window")
	fs.Bool("submit_throttle_enabled", false, "Throttle submissions per client IP and email")
	fs.Int("submit_throttle_max", 10, "Submissions per window")
	fs.Duration("submit_throttle_window", 15*time.Minute, "Submit throttle window")
	fs.Duration("form_idle_ttl", 30*time.Minute, "Evict forms idle for longer than this")
	fs.Int("max_forms", 10000, "Maximum concurrently open forms")

	fs.Duration("session_ttl", 24*time.Hour, "Session token lifetime")
	fs.String("session_signing_key", "", "HS256 session signing key (32+ bytes)")
	fs.String("session_issuer", "authform", "Session token issuer")
	fs.Bool("cookie_secure", false, "Mark the session cookie Secure")
	fs.Duration("reset_ttl", time.Hour, "Password reset token lifetime")
}

func allKeys() []string {
	return []string{
		"env", "log_level",
		"http_addr", "read_header_timeout", "shutdown_timeout", "max_request_body_bytes", "trust_proxy_headers",
		"enable_cors", "cors_allowed_origins", "cors_allow_credentials", "cors_max_age",
		"redis_addr", "redis_password", "redis_db",
		"locale", "max_email_checks", "min_password_length", "lookup_timeout",
		"lookup_throttle_enabled", "lookup_throttle_max", "lookup_throttle_window",
		"submit_throttle_enabled", "submit_throttle_max", "submit_throttle_window",
		"form_idle_ttl", "max_forms",
		"session_ttl", "session_signing_key", "session_issuer", "cookie_secure", "reset_ttl",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("read_header_timeout", "5s")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("max_request_body_bytes", 64<<10)
	v.SetDefault("trust_proxy_headers", false)

	v.SetDefault("enable_cors", false)
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("cors_allow_credentials", true)
	v.SetDefault("cors_max_age", 300)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("locale", authform.LocalePTBR)
	v.SetDefault("max_email_checks", 3)
	v.SetDefault("min_password_length", 6)
	v.SetDefault("lookup_timeout", "5s")
	v.SetDefault("lookup_throttle_enabled", false)
	v.SetDefault("lookup_throttle_max", 30)
	v.SetDefault("lookup_throttle_window", "10m")
	v.SetDefault("submit_throttle_enabled", false)
	v.SetDefault("submit_throttle_max", 10)
	v.SetDefault("submit_throttle_window", "15m")
	v.SetDefault("form_idle_ttl", "30m")
	v.SetDefault("max_forms", 10000)

	v.SetDefault("session_ttl", "24h")
	v.SetDefault("session_signing_key", "")
	v.SetDefault("session_issuer", "authform")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("reset_ttl", "1h")
}

// normalizeListKeys accepts JSON arrays or comma-separated strings for list keys.
func normalizeListKeys(v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		s, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			v.Set(key, []string{})
			continue
		}
		if strings.HasPrefix(s, "[") {
			var list []string
			if err := json.Unmarshal([]byte(s), &list); err != nil {
				return fmt.Errorf("%s: invalid JSON array: %w", key, err)
			}
			v.Set(key, list)
			continue
		}
		parts := strings.Split(s, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		v.Set(key, list)
	}
	return nil
}

func validateAppConfig(cfg AppConfig) error {
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return fmt.Errorf("env must be dev or prod, got %q", cfg.Env)
	}
	if !logging.IsValidLogLevel(cfg.LogLevel) {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.HTTP.Addr == "" {
		return errors.New("http_addr is required")
	}
	if cfg.HTTP.MaxRequestBodyBytes <= 0 {
		return errors.New("max_request_body_bytes must be > 0")
	}
	if cfg.Form.FormIdleTTL <= 0 {
		return errors.New("form_idle_ttl must be > 0")
	}
	if cfg.Form.MaxForms <= 0 {
		return errors.New("max_forms must be > 0")
	}
	if cfg.Session.SessionTTL <= 0 {
		return errors.New("session_ttl must be > 0")
	}
	if cfg.Session.ResetTTL <= 0 {
		return errors.New("reset_ttl must be > 0")
	}
	if key := cfg.Session.SessionSigningKey; key != "" && len(key) < 32 {
		return errors.New("session_signing_key must be at least 32 bytes")
	}
	if cfg.Env == "prod" {
		if cfg.Redis.RedisAddr == "" {
			return errors.New("redis_addr is required in prod")
		}
		if cfg.Session.SessionSigningKey == "" {
			return errors.New("session_signing_key is required in prod")
		}
	}
	if cfg.CORS.EnableCORS && len(cfg.CORS.CORSAllowedOrigins) == 0 {
		return errors.New("enable_cors requires cors_allowed_origins")
	}
	engineCfg := cfg.engineConfig()
	return engineCfg.Validate()
}
