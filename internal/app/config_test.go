package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hundredminds/backend/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	require.Equal(t, 20, cfg.Server.RateLimit.Requests)
	require.Equal(t, 15*time.Minute, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, "hundredminds", cfg.Database.Name)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "access-secret", cfg.Auth.AccessSecret)
	require.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 1440*time.Hour, cfg.Auth.RefreshTTL)
	require.Equal(t, 3*time.Minute, cfg.Auth.OTPTTL)
	require.Equal(t, 7, cfg.Auth.LockoutThreshold)
	require.Equal(t, 6*time.Hour, cfg.Auth.LockoutWindow)
	require.Equal(t, 4, cfg.Auth.ResetMaxRetries)
	require.Equal(t, 10*time.Minute, cfg.Auth.ResetTTL)
	require.Equal(t, 168*time.Hour, cfg.Auth.InviteTTL)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.Equal(t, TransportRedis, cfg.Notifications.Transport)
	require.Equal(t, "mail-queue", cfg.Notifications.Stream.Name)
	require.Equal(t, "mailers", cfg.Notifications.Stream.Group)

	require.True(t, cfg.Storage.Enabled)
	require.Equal(t, "faces", cfg.Storage.Bucket)
	require.Equal(t, "https://app.example.com", cfg.Frontend.URL)

	require.Equal(t, "@every 5m", cfg.Maintenance.OTPSchedule)
	require.Equal(t, "@daily", cfg.Maintenance.InviteSchedule)
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("HUNDREDMINDS_SERVER_PORT", "8181")
	t.Setenv("HUNDREDMINDS_AUTH_GENERAL_SECRET", "from-env")
	t.Setenv("HUNDREDMINDS_NOTIFICATIONS_TRANSPORT", "kafka")
	t.Setenv("HUNDREDMINDS_NOTIFICATIONS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8181, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "from-env", cfg.Auth.GeneralSecret)
	require.Empty(t, cfg.Auth.AccessSecret)
	require.Equal(t, TransportKafka, cfg.Notifications.Transport)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notifications.Kafka.Brokers)
	require.Equal(t, 5, cfg.Auth.LockoutThreshold)
	require.Equal(t, 12*time.Hour, cfg.Auth.LockoutWindow)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Server: ServerConfig{Port: 8000}, Notifications: NotificationsConfig{Transport: TransportDirect}}
	require.NoError(t, cfg.Validate())

	cfg.Notifications.Transport = TransportRedis
	require.ErrorContains(t, cfg.Validate(), "cache.redis.enabled")

	cfg.Notifications.Transport = TransportKafka
	require.ErrorContains(t, cfg.Validate(), "brokers")

	cfg.Notifications.Transport = "pigeon"
	require.ErrorContains(t, cfg.Validate(), "unknown")

	cfg.Notifications.Transport = TransportDirect
	cfg.Server.Port = 0
	require.ErrorContains(t, cfg.Validate(), "server.port")
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		AccessSecret:     "a",
		RefreshSecret:    "r",
		GeneralSecret:    "g",
		Issuer:           "issuer",
		AccessTTL:        30 * time.Minute,
		RefreshTTL:       10 * time.Hour,
		OTPTTL:           time.Minute,
		LockoutThreshold: 4,
		LockoutWindow:    2 * time.Hour,
		ResetTTL:         5 * time.Minute,
		ResetMaxRetries:  2,
	}

	require.Equal(t, auth.TokenConfig{
		AccessSecret:  "a",
		RefreshSecret: "r",
		GeneralSecret: "g",
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    10 * time.Hour,
		Issuer:        "issuer",
	}, cfg.TokenConfig())

	require.Equal(t, auth.SignInConfig{
		LockoutThreshold: 4,
		LockoutWindow:    2 * time.Hour,
		OTPTTL:           time.Minute,
	}, cfg.SignInConfig())

	require.Equal(t, auth.PasswordResetConfig{
		TokenTTL:    5 * time.Minute,
		MaxRetries:  2,
		FrontendURL: "https://app.example.com",
	}, cfg.PasswordResetConfig(" https://app.example.com "))
}

func TestEmailConfigAdapter(t *testing.T) {
	cfg := EmailConfig{
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.Equal(t, 10*time.Second, settings.Timeout)
}

func TestStorageAndDatabaseAdapters(t *testing.T) {
	store := StorageConfig{Endpoint: "minio:9000", Bucket: "avatars", MaxBytes: 1024}.AvatarStoreConfig()
	require.Equal(t, "minio:9000", store.Endpoint)
	require.Equal(t, "avatars", store.Bucket)
	require.EqualValues(t, 1024, store.MaxBytes)

	db := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, Name: "hm"}.DatabaseOptions()
	require.Equal(t, "mysql", db.Driver)
	require.Equal(t, 3306, db.Port)
	require.Equal(t, "hm", db.Name)
}
