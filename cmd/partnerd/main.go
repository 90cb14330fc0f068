package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"partnerd/internal/config"
	"partnerd/pkg/bus"
	"partnerd/pkg/db"
	"partnerd/pkg/mail"
	"partnerd/pkg/s3"
	"partnerd/pkg/telemetry"
	"partnerd/services/audit"
	"partnerd/services/partner"
)

const serviceName = "partnerd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	logger := telemetry.NewLogger(serviceName)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	shutdownTelemetry, requestMiddleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}

	orm, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("open orm")
	}

	store := partner.Store{
		Applications: partner.NewGormApplicationStore(orm),
		Tokens:       partner.NewPostgresTokenStore(pool),
	}

	if cfg.NATSURL != "" {
		eventBus, err := bus.New(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect bus")
		}
		defer eventBus.Close()
		store.Bus = eventBus

		recorder, err := audit.NewRecorder(pool, eventBus, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("build audit recorder")
		}
		if err := recorder.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("start audit recorder")
		}
		defer func() {
			if err := recorder.Stop(); err != nil {
				logger.Error().Err(err).Msg("stop audit recorder")
			}
		}()
	} else {
		logger.Warn().Msg("NATS_URL not set, events and audit trail disabled")
	}

	if cfg.SMTPHost != "" {
		mailer, err := mail.New(mail.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("build mailer")
		}
		store.Mail = mailer
	} else {
		logger.Warn().Msg("SMTP_HOST not set, email notifications disabled")
	}

	if cfg.CVBucket != "" {
		s3Client, err := s3.NewClientFromEnv()
		if err != nil {
			logger.Fatal().Err(err).Msg("build s3 client")
		}
		store.S3 = s3Client
	}

	api, err := partner.New(store, partner.Config{
		PublicBaseURL:        cfg.PublicBaseURL,
		CVBucket:             cfg.CVBucket,
		ValidityDays:         cfg.TokenValidityDays,
		RevokePriorOnReissue: cfg.RevokePriorOnReissue,
		CORSOrigins:          cfg.AllowedOrigins,
		Logger:               logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build api")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(requestMiddleware),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting partnerd")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}
