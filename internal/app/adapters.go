package app

import (
	"strings"

	"github.com/hundredminds/backend/internal/cache"
	"github.com/hundredminds/backend/internal/database"
	"github.com/hundredminds/backend/internal/storage"
	"github.com/hundredminds/backend/pkg/mail"
)

// The methods below translate configuration sections into the option
// structs of the packages that consume them.

// DatabaseOptions returns the connection options for database.Open.
func (c DatabaseConfig) DatabaseOptions() database.Config {
	return database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            strings.TrimSpace(c.Path),
		DSN:             strings.TrimSpace(c.DSN),
		Host:            strings.TrimSpace(c.Host),
		Port:            c.Port,
		Name:            c.Name,
		User:            c.User,
		Password:        c.Password,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogLevel:        c.LogLevel,
	}
}

// RedisClientConfig returns the options for cache.NewRedisClient.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	r := c.Redis
	return cache.RedisConfig{
		Address:  strings.TrimSpace(r.Address),
		Username: strings.TrimSpace(r.Username),
		Password: r.Password,
		DB:       r.DB,
		TLS:      r.TLS,
		Timeout:  r.Timeout,
	}
}

// SMTPSettings returns the SMTP mailer options. A disabled section yields
// settings whose mailer refuses to send.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	s := c.SMTP
	return mail.SMTPSettings{
		Enabled:  s.Enabled,
		Host:     strings.TrimSpace(s.Host),
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     strings.TrimSpace(s.From),
		UseTLS:   s.UseTLS,
		Timeout:  s.Timeout,
	}
}

// AvatarStoreConfig returns the MinIO options for avatar uploads.
func (c StorageConfig) AvatarStoreConfig() storage.Config {
	return storage.Config{
		Endpoint:  strings.TrimSpace(c.Endpoint),
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Region:    c.Region,
		Bucket:    strings.TrimSpace(c.Bucket),
		UseSSL:    c.UseSSL,
		PublicURL: strings.TrimRight(strings.TrimSpace(c.PublicURL), "/"),
		MaxBytes:  c.MaxBytes,
	}
}
