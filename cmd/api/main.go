package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/config"
	"github.com/xavierca1/ligue-crm/internal/infra/database"
	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/infra/mail"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// 1. Database
	db, err := database.NewDBConnection(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database ready", slog.String("driver", db.Driver))

	// 2. Event bus and the worker that mails sales ops
	var (
		publisher usecase.EventPublisher = queue.LogPublisher{Logger: logger}
		amqpConn  *amqp.Connection
	)
	if cfg.AMQPURL != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()
		amqpConn = rabbitMQ.Conn
		publisher = queue.NewProducer(rabbitMQ.Ch)

		consumeCh, err := rabbitMQ.Conn.Channel()
		if err != nil {
			return err
		}
		defer consumeCh.Close()

		var notifier queue.Notifier = mail.LogNotifier{Logger: logger}
		if cfg.MailHost != "" {
			notifier = mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom, cfg.NotifyTo)
		}
		worker := queue.NewWorker(consumeCh, notifier, logger)
		go func() {
			if err := worker.Start(ctx, queue.QueueName); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", slog.Any("error", err))
			}
		}()
	}

	// 3. Conversion use case
	var uow entity.UnitOfWork = database.NewUnitOfWork(db, logger)
	if cfg.ConversionMode == config.ModeSaga {
		uow = usecase.NewSagaUnitOfWork(database.NewStore(db.SQL, db.Dialect), logger)
	}
	auditor := usecase.NewConversionAuditor(database.NewAuditRepository(db.SQL, db.Dialect), publisher, logger)

	convertLeadUC := usecase.NewConvertLeadUseCase(uow, auditor, logger)
	convertLeadUC.Timeout = cfg.ConversionTimeout
	convertLeadUC.MaxAttempts = cfg.ConversionMaxAttempts

	// 4. HTTP
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.Cleanup(10*time.Minute, ctx.Done())

	router := newRouter(
		handlers.NewLeadHandler(convertLeadUC, logger),
		handlers.NewHealthHandler(db.SQL, amqpConn, version),
		limiter,
		cfg.CORSAllowedOrigins,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("crm api listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("conversion_mode", cfg.ConversionMode))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
