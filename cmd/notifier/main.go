package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/logger"
	"github.com/noah-isme/sma-substitute-api/pkg/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "notifier")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil && !errors.Is(err, context.Canceled) {
		logr.Fatal("notifier stopped", zap.Error(err))
	}
	logr.Info("notifier stopped")
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	conn, ch, err := notify.Dial(cfg.Notifications.AMQPURL, cfg.Notifications.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(cfg.Notifications.Queue, "substitution-notifier", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.Notifications.Queue, err)
	}

	client, err := notify.NewMailClient(notify.MailConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	if err != nil {
		return err
	}
	mailer := notify.NewMailer(client, cfg.Mail.From)

	logr.Info("notifier consuming", zap.String("queue", cfg.Notifications.Queue), zap.String("smtp_host", cfg.Mail.Host))
	return notify.NewConsumer(deliveries, mailer.Handle, logr).Run(ctx)
}
