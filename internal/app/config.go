package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. HUNDREDMINDS_SERVER_PORT.
const EnvPrefix = "HUNDREDMINDS"

// Config represents the runtime configuration for the HundredMinds backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Email         EmailConfig         `mapstructure:"email"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Frontend      FrontendConfig      `mapstructure:"frontend"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	CookieDomain    string          `mapstructure:"cookie_domain"`
	SecureCookies   bool            `mapstructure:"secure_cookies"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds request volume on the authentication routes.
type RateLimitConfig struct {
	Requests  int           `mapstructure:"requests"`
	Window    time.Duration `mapstructure:"window"`
	PerSecond float64       `mapstructure:"per_second"`
	Burst     int           `mapstructure:"burst"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures the token secrets and the sign-in and reset limits.
type AuthConfig struct {
	AccessSecret     string        `mapstructure:"access_secret"`
	RefreshSecret    string        `mapstructure:"refresh_secret"`
	GeneralSecret    string        `mapstructure:"general_secret"`
	Issuer           string        `mapstructure:"issuer"`
	AccessTTL        time.Duration `mapstructure:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`
	OTPTTL           time.Duration `mapstructure:"otp_ttl"`
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutWindow    time.Duration `mapstructure:"lockout_window"`
	ResetTTL         time.Duration `mapstructure:"reset_ttl"`
	ResetMaxRetries  int           `mapstructure:"reset_max_retries"`
	InviteTTL        time.Duration `mapstructure:"invite_ttl"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	AppName string     `mapstructure:"app_name"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig selects how outbound emails leave the API process.
type NotificationsConfig struct {
	Transport string       `mapstructure:"transport"`
	Stream    StreamConfig `mapstructure:"stream"`
	Kafka     KafkaConfig  `mapstructure:"kafka"`
}

// StreamConfig names the redis stream notifications are queued on.
type StreamConfig struct {
	Name     string        `mapstructure:"name"`
	Group    string        `mapstructure:"group"`
	Consumer string        `mapstructure:"consumer"`
	MaxLen   int64         `mapstructure:"max_len"`
	Block    time.Duration `mapstructure:"block"`
}

// KafkaConfig points the kafka transport at a topic.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// StorageConfig describes the MinIO bucket avatars are uploaded to.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// FrontendConfig locates the web client that links in emails point to.
type FrontendConfig struct {
	URL string `mapstructure:"url"`
}

// MonitoringConfig enables the metrics endpoint.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// MaintenanceConfig schedules the cleanup jobs.
type MaintenanceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	OTPSchedule    string `mapstructure:"otp_schedule"`
	ResetSchedule  string `mapstructure:"reset_schedule"`
	InviteSchedule string `mapstructure:"invite_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A .env file in the working directory is loaded first; variables already set win.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Notifications.Transport {
	case TransportDirect:
	case TransportRedis:
		if !c.Cache.Redis.Enabled {
			return errors.New("config: notifications.transport=redis requires cache.redis.enabled")
		}
	case TransportKafka:
		if len(c.Notifications.Kafka.Brokers) == 0 {
			return errors.New("config: notifications.kafka.brokers is required for the kafka transport")
		}
	default:
		return fmt.Errorf("config: unknown notifications.transport %q", c.Notifications.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1h")
	v.SetDefault("server.rate_limit.per_second", 5)
	v.SetDefault("server.rate_limit.burst", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/hundredminds.sqlite")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	// Empty defaults register the keys so environment overrides are decoded.
	for _, key := range []string{
		"server.cookie_domain",
		"database.dsn", "database.host", "database.name", "database.user", "database.password",
		"cache.redis.username", "cache.redis.password",
		"auth.access_secret", "auth.refresh_secret", "auth.general_secret",
		"email.smtp.host", "email.smtp.username", "email.smtp.password",
		"notifications.stream.consumer", "notifications.kafka.brokers",
		"storage.endpoint", "storage.access_key", "storage.secret_key", "storage.public_url",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("auth.issuer", "hundredminds")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "720h")
	v.SetDefault("auth.otp_ttl", "5m")
	v.SetDefault("auth.lockout_threshold", 5)
	v.SetDefault("auth.lockout_window", "12h")
	v.SetDefault("auth.reset_ttl", "10m")
	v.SetDefault("auth.reset_max_retries", 3)
	v.SetDefault("auth.invite_ttl", "168h")

	v.SetDefault("email.app_name", "HundredMinds")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.from", "no-reply@hundredminds.local")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("notifications.transport", TransportDirect)
	v.SetDefault("notifications.stream.name", "hundredminds:notifications")
	v.SetDefault("notifications.stream.group", "mailers")
	v.SetDefault("notifications.stream.max_len", 10000)
	v.SetDefault("notifications.stream.block", "5s")
	v.SetDefault("notifications.kafka.topic", "hundredminds.notifications")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "avatars")
	v.SetDefault("storage.max_bytes", 2<<20)

	v.SetDefault("frontend.url", "http://localhost:3000")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.otp_schedule", "@every 10m")
	v.SetDefault("maintenance.reset_schedule", "@hourly")
	v.SetDefault("maintenance.invite_schedule", "@daily")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
