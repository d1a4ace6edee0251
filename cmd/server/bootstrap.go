package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hundredminds/backend/internal/api"
	"github.com/hundredminds/backend/internal/app"
	"github.com/hundredminds/backend/internal/app/maintenance"
	iauth "github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/cache"
	"github.com/hundredminds/backend/internal/database"
	"github.com/hundredminds/backend/internal/handlers"
	"github.com/hundredminds/backend/internal/middleware"
	"github.com/hundredminds/backend/internal/notify"
	"github.com/hundredminds/backend/internal/repository"
	"github.com/hundredminds/backend/internal/services"
	"github.com/hundredminds/backend/internal/storage"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/mail"
)

const (
	defaultShutdownTimeout = 15 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine

	closers []io.Closer
	log     *zap.Logger
}

// bootstrapRuntime initialises the database, cache, notification transport, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{log: log}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background())
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var limiter cache.Store = cache.NewMemoryStore(nil)
	if cfg.Cache.Redis.Enabled {
		stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig())
		switch {
		case err != nil && cfg.Notifications.Transport == app.TransportRedis:
			return nil, fmt.Errorf("connect redis: %w", err)
		case err != nil:
			log.Warn("redis unavailable; falling back to in-process rate limiting", zap.Error(err))
		default:
			limiter = cache.NewRedisStore(stack.Redis)
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	tokens, err := iauth.NewTokenCodec(cfg.Auth.TokenConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token codec: %w", err)
	}

	publisher, err := stack.notificationPublisher(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher, err := notify.NewDispatcher(publisher)
	if err != nil {
		return nil, fmt.Errorf("initialise notifications: %w", err)
	}

	users, err := repository.NewUserRepository(stack.DB)
	if err != nil {
		return nil, err
	}
	teams, err := repository.NewTeamRepository(stack.DB)
	if err != nil {
		return nil, err
	}

	deps := api.Dependencies{Tokens: tokens, Limiter: limiter}

	if deps.Authenticator, err = iauth.NewAuthenticator(users, tokens); err != nil {
		return nil, fmt.Errorf("initialise authenticator: %w", err)
	}
	if deps.SignIn, err = iauth.NewSignInService(users, tokens, dispatcher, cfg.Auth.SignInConfig()); err != nil {
		return nil, fmt.Errorf("initialise sign-in service: %w", err)
	}
	if deps.Resets, err = iauth.NewPasswordResetService(users, tokens, dispatcher, cfg.Auth.PasswordResetConfig(cfg.Frontend.URL)); err != nil {
		return nil, fmt.Errorf("initialise password reset service: %w", err)
	}

	userOpts := []services.UserOption{}
	if cfg.Storage.Enabled {
		avatars, err := storage.NewAvatarStore(cfg.Storage.AvatarStoreConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise avatar storage: %w", err)
		}
		if err := avatars.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("prepare avatar bucket: %w", err)
		}
		userOpts = append(userOpts, services.WithAvatarStorage(avatars))
	}
	if deps.Users, err = services.NewUserService(users, tokens, dispatcher, userOpts...); err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	if deps.Teams, err = services.NewTeamService(teams, users, dispatcher); err != nil {
		return nil, fmt.Errorf("initialise team service: %w", err)
	}
	deps.Invites, err = services.NewInviteService(teams, users, tokens, dispatcher,
		services.WithInviteBaseURL(cfg.Frontend.URL),
		services.WithInviteExpiry(cfg.Auth.InviteTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise invite service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner, err = maintenance.NewCleaner(users, teams,
			maintenance.WithSchedules(cfg.Maintenance.OTPSchedule, cfg.Maintenance.ResetSchedule, cfg.Maintenance.InviteSchedule),
		)
		if err != nil {
			return nil, err
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	sqlDB, err := stack.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	deps.Health = healthChecks(sqlDB, stack.Redis)

	metricsPath := ""
	if cfg.Monitoring.Prometheus.Enabled {
		metricsPath = cfg.Monitoring.Prometheus.Endpoint
	}

	stack.Router, err = api.NewRouter(deps, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsPath:    metricsPath,
		AuthRequests:   cfg.Server.RateLimit.Requests,
		AuthWindow:     cfg.Server.RateLimit.Window,
		PerSecond:      cfg.Server.RateLimit.PerSecond,
		Burst:          cfg.Server.RateLimit.Burst,
		Cookies: middleware.TokenCookies{
			Domain:     cfg.Server.CookieDomain,
			Secure:     cfg.Server.SecureCookies,
			AccessTTL:  tokens.AccessTTL(),
			RefreshTTL: tokens.RefreshTTL(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// notificationPublisher picks the transport emails leave the API through.
func (s *runtimeStack) notificationPublisher(cfg *app.Config) (notify.Publisher, error) {
	switch cfg.Notifications.Transport {
	case app.TransportRedis:
		if s.Redis == nil {
			return nil, fmt.Errorf("notifications: redis transport requires a redis connection")
		}
		return notify.NewStreamPublisher(s.Redis, cfg.Notifications.Stream.Name, cfg.Notifications.Stream.MaxLen)
	case app.TransportKafka:
		publisher, err := notify.NewKafkaPublisher(notify.KafkaConfig{
			Brokers: cfg.Notifications.Kafka.Brokers,
			Topic:   cfg.Notifications.Kafka.Topic,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, publisher)
		return publisher, nil
	default:
		return directPublisher(cfg.Email, s.log)
	}
}

// directPublisher renders and sends emails in-process.
func directPublisher(cfg app.EmailConfig, log *zap.Logger) (notify.Publisher, error) {
	renderer, err := notify.NewRenderer(cfg.SMTP.From, cfg.AppName)
	if err != nil {
		return nil, fmt.Errorf("notifications: templates: %w", err)
	}

	var mailer mail.Mailer
	if cfg.SMTP.Enabled {
		if mailer, err = mail.NewSMTPMailer(cfg.SMTPSettings()); err != nil {
			return nil, fmt.Errorf("notifications: smtp: %w", err)
		}
	} else {
		log.Warn("smtp disabled; outbound email is kept in memory only")
		mailer = mail.NewMemoryMailer()
	}
	return notify.NewMailPublisher(renderer, mailer)
}

// healthChecks builds the dependency probes served on /health.
func healthChecks(sqlDB *sql.DB, client *redis.Client) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"database": func(ctx context.Context) error { return database.PingSQL(ctx, sqlDB) },
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, ctx.Err())
		}
	}

	for _, c := range s.closers {
		errs = multierr.Append(errs, c.Close())
	}
	s.closers = nil

	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
		s.Redis = nil
	}

	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
		s.DB = nil
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOptions()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func shutdownTimeout(cfg *app.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return defaultShutdownTimeout
}
