// mailworker consumes queued mail from RabbitMQ and delivers it over SMTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/pawfinder/internal/config"
	"github.com/tendant/pawfinder/internal/notification"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.HasAMQP() {
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}

	var sender notification.Sender
	if cfg.HasSMTP() {
		sender = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			Timeout:  cfg.NotifyTimeout,
		})
	} else {
		sender = notification.NewLogSender(logger)
		logger.Warn("SMTP not configured; mail is written to the log")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := notification.NewConsumer(notification.AMQPConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Queue:    cfg.AMQPQueue,
		Prefetch: cfg.AMQPPrefetch,
	}, sender, logger)

	for {
		err := consumer.Connect()
		if err == nil {
			break
		}
		logger.Warn("rabbitmq connect failed, retrying", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
	defer consumer.Close()

	logger.Info("mail worker started", "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("mail worker stopped")
}
