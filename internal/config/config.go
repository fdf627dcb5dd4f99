// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	Session   SessionConfig   `koanf:"session"`
	JWT       JWTConfig       `koanf:"jwt"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Mail      MailConfig      `koanf:"mail"`
	Storage   StorageConfig   `koanf:"storage"`
	Tasks     TasksConfig     `koanf:"tasks"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	Debug       bool   `koanf:"debug"`
	BaseURL     string `koanf:"base_url"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainDelay      time.Duration `koanf:"drain_delay"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

// CacheConfig selects the read-through cache backend. Cart entries live
// for a third of TTL.
type CacheConfig struct {
	Backend    string        `koanf:"backend"`
	TTL        time.Duration `koanf:"ttl"`
	MemorySize int           `koanf:"memory_size"`
}

func (c CacheConfig) CartTTL() time.Duration {
	return c.TTL / 3
}

type SessionConfig struct {
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
}

type JWTConfig struct {
	Secret             string        `koanf:"secret"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type AuthConfig struct {
	ActivationTimeout time.Duration `koanf:"activation_timeout"`
	LoginURL          string        `koanf:"login_url"`
}

// RateLimitConfig holds per-hour request budgets for anonymous and
// authenticated callers.
type RateLimitConfig struct {
	Anonymous     int  `koanf:"anonymous"`
	Authenticated int  `koanf:"authenticated"`
	FailOpen      bool `koanf:"fail_open"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	UseTLS   bool   `koanf:"use_tls"`
	From     string `koanf:"from"`
}

type StorageConfig struct {
	Type      string `koanf:"type"`
	BasePath  string `koanf:"base_path"`
	BaseURL   string `koanf:"base_url"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Endpoint  string `koanf:"endpoint"`
}

type TasksConfig struct {
	Queue          string        `koanf:"queue"`
	Workers        int           `koanf:"workers"`
	ResultTTL      time.Duration `koanf:"result_ttl"`
	RatingSchedule string        `koanf:"rating_schedule"`

	// TokenFlushSchedule deletes long-expired refresh token records.
	TokenFlushSchedule string `koanf:"token_flush_schedule"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "HomeSer",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,
		"app.base_url":    "http://localhost:8080",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.drain_delay":      "5s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"cache.backend":     "redis",
		"cache.ttl":         "900s",
		"cache.memory_size": 10000,

		"session.cookie_name": "sessionid",
		"session.ttl":         "336h",

		"jwt.access_token_expire":  "60m",
		"jwt.refresh_token_expire": "24h",
		"jwt.issuer":               "homeser",
		"jwt.audience":             "homeser-api",

		"auth.activation_timeout": "72h",
		"auth.login_url":          "/accounts/login/",

		"rate_limit.anonymous":     100,
		"rate_limit.authenticated": 1000,
		"rate_limit.fail_open":     true,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "homeser",

		"mail.host":    "localhost",
		"mail.port":    25,
		"mail.use_tls": false,
		"mail.from":    "webmaster@localhost",

		"storage.type":      "local",
		"storage.base_path": "media",
		"storage.base_url":  "/media",

		"tasks.queue":                "tasks:email",
		"tasks.workers":              2,
		"tasks.result_ttl":           "24h",
		"tasks.rating_schedule":      "",
		"tasks.token_flush_schedule": "@daily",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                      "database.url",
	"REDIS_URL":                         "redis.url",
	"ENVIRONMENT":                       "app.environment",
	"DEBUG":                             "app.debug",
	"BASE_URL":                          "app.base_url",
	"HOST":                              "server.host",
	"PORT":                              "server.port",
	"LOG_LEVEL":                         "log.level",
	"LOG_FORMAT":                        "log.format",
	"CACHE_BACKEND":                     "cache.backend",
	"CACHE_TTL":                         "cache.ttl",
	"SECRET_KEY":                        "jwt.secret",
	"JWT_SECRET":                        "jwt.secret",
	"JWT_ACCESS_TOKEN_EXPIRE":           "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":          "jwt.refresh_token_expire",
	"JWT_ISSUER":                        "jwt.issuer",
	"JWT_AUDIENCE":                      "jwt.audience",
	"ACTIVATION_TIMEOUT":                "auth.activation_timeout",
	"THROTTLE_ANON":                     "rate_limit.anonymous",
	"THROTTLE_USER":                     "rate_limit.authenticated",
	"EMAIL_HOST":                        "mail.host",
	"EMAIL_PORT":                        "mail.port",
	"EMAIL_HOST_USER":                   "mail.username",
	"EMAIL_HOST_PASSWORD":               "mail.password",
	"EMAIL_USE_TLS":                     "mail.use_tls",
	"DEFAULT_FROM_EMAIL":                "mail.from",
	"STORAGE_TYPE":                      "storage.type",
	"STORAGE_BASE_PATH":                 "storage.base_path",
	"STORAGE_BASE_URL":                  "storage.base_url",
	"STORAGE_BUCKET":                    "storage.bucket",
	"STORAGE_REGION":                    "storage.region",
	"STORAGE_ACCESS_KEY":                "storage.access_key",
	"STORAGE_SECRET_KEY":                "storage.secret_key",
	"STORAGE_ENDPOINT":                  "storage.endpoint",
	"TASK_WORKERS":                      "tasks.workers",
	"RATING_SCHEDULE":                   "tasks.rating_schedule",
	"TOKEN_FLUSH_SCHEDULE":              "tasks.token_flush_schedule",
	"OTEL_ENDPOINT":                     "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":       "otel.endpoint",
	"OTEL_SERVICE_NAME":                 "otel.service_name",
	"OTEL_ENABLED":                      "otel.enabled",
	"OTEL_INSECURE":                     "otel.insecure",
	"OTEL_SAMPLE_RATE":                  "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}

	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	switch c.Storage.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required for s3 storage")
	}

	if c.RateLimit.Anonymous <= 0 || c.RateLimit.Authenticated <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.App.Debug {
			return fmt.Errorf("DEBUG must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// SecureCookies reports whether auth cookies carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return !c.App.Debug
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
