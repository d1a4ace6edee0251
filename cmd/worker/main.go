// Command worker drains the notification stream and delivers emails over SMTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hundredminds/backend/internal/app"
	"github.com/hundredminds/backend/internal/cache"
	"github.com/hundredminds/backend/internal/notify"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("hundredminds-worker", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath, consumer string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")
	fs.StringVar(&consumer, "consumer", "", "Consumer name within the group (defaults to the hostname)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("worker")

	if !cfg.Email.SMTP.Enabled {
		return errors.New("worker: email.smtp.enabled must be true")
	}

	client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()

	renderer, err := notify.NewRenderer(cfg.Email.SMTP.From, cfg.Email.AppName)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("configure smtp: %w", err)
	}
	publisher, err := notify.NewMailPublisher(renderer, mailer)
	if err != nil {
		return err
	}

	if consumer == "" {
		consumer = cfg.Notifications.Stream.Consumer
	}
	if consumer == "" {
		consumer, _ = os.Hostname()
	}

	streams, err := notify.NewStreamConsumer(client, publisher, notify.ConsumerConfig{
		Stream:   cfg.Notifications.Stream.Name,
		Group:    cfg.Notifications.Stream.Group,
		Consumer: consumer,
		Block:    cfg.Notifications.Stream.Block,
	})
	if err != nil {
		return err
	}

	log.Info("worker consuming notifications",
		zap.String("stream", cfg.Notifications.Stream.Name),
		zap.String("consumer", consumer),
	)
	if err := streams.Run(ctx); err != nil {
		return err
	}
	log.Info("worker stopped")
	return nil
}
