package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/pawfinder/internal/config"
	httpserver "github.com/tendant/pawfinder/internal/http"
	"github.com/tendant/pawfinder/internal/notification"
	"github.com/tendant/pawfinder/internal/realtime"
	"github.com/tendant/pawfinder/pkg/auth"
	"github.com/tendant/pawfinder/pkg/lifecycle"
	"github.com/tendant/pawfinder/pkg/matcher"
	"github.com/tendant/pawfinder/pkg/repository"
	"github.com/tendant/pawfinder/pkg/repository/memory"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Storage
	var (
		accounts repository.AccountRepository
		pets     repository.PetRepository
	)
	switch cfg.Storage {
	case config.StorageMemory:
		accountRepo := memory.NewAccountRepo()
		accounts = accountRepo
		pets = memory.NewPetRepo(accountRepo)
		logger.Warn("using in-memory storage; data is lost on restart")
	default:
		dbCfg := repository.Config{
			Driver:   cfg.DBDriver,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}
		if cfg.DBAutoMigrate {
			if err := repository.Migrate(dbCfg.DSN(), repository.DirectionUp); err != nil {
				logger.Error("failed to apply migrations", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}

		db, err := repository.NewDB(dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		logger.Info("connected to database", "driver", cfg.DBDriver)
		accounts = repository.NewAccountsRepository(db)
		pets = repository.NewPetsRepository(db)
	}

	// Mail: login codes go out synchronously through sender, alerts and
	// finder reports through the dispatcher.
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
		logger.Info("email service enabled", "host", cfg.SMTPHost)
	} else {
		sender = notification.NewLogSender(logger)
		logger.Warn("SMTP not configured; mail is written to the log")
	}

	var (
		mail      notification.Dispatcher
		closeMail func(context.Context) error
	)
	if cfg.HasAMQP() {
		d, err := notification.NewAMQPDispatcher(notification.AMQPConfig{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
			Prefetch: cfg.AMQPPrefetch,
		})
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		mail = d
		closeMail = func(context.Context) error { return d.Close() }
		logger.Info("mail queued through rabbitmq", "exchange", cfg.AMQPExchange)
	} else {
		d := notification.NewLocalDispatcher(sender, cfg.MailWorkers, cfg.MailQueueSize, logger)
		mail = d
		closeMail = d.Close
	}

	// Services
	credentials := auth.NewCredentialStore(accounts, auth.CredentialStoreConfig{
		Policy:                   auth.NewPasswordPolicy(cfg.PasswordPolicy),
		StrictEmailValidation:    cfg.Validation.StrictEmailValidation,
		StrictUsernameValidation: cfg.Validation.StrictUsername,
		BlockDisposableEmail:     cfg.Validation.BlockDisposableEmail,
	}, logger)
	codes := auth.NewCodeIssuer(auth.WithTTL(cfg.OTPTTL), auth.WithLogger(logger))
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL: cfg.AccessTokenTTL,
		JWTSecret:      []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
	})
	rt := realtime.NewRouter(logger)
	manager := lifecycle.NewManager(pets, accounts, rt, mail, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTPPurgeInterval > 0 {
		go codes.Run(ctx, cfg.OTPPurgeInterval)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Credentials:     credentials,
		Codes:           codes,
		SessionService:  sessionService,
		Lifecycle:       manager,
		Matcher:         matcher.New(pets, logger),
		Realtime:        rt,
		Sender:          sender,
		Mail:            mail,
		NotifyTimeout:   cfg.NotifyTimeout,
		RealtimeConfig:  cfg.Realtime,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		CookieSecure:    cfg.CookieSecure,
	})

	// Create HTTP server. No WriteTimeout: it would cut long-lived websockets.
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := closeMail(shutdownCtx); err != nil {
		logger.Error("mail shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
