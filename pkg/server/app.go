package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SigFuse/internal/middleware"
	"SigFuse/internal/usecase"
	pkgch "SigFuse/pkg/clickhouse"
	"SigFuse/pkg/config"
	xhttp "SigFuse/pkg/http"
	pkgkafka "SigFuse/pkg/kafka"
	applogger "SigFuse/pkg/logger"
)

// App encapsulates the application lifecycle: the pipeline loop, the
// ingest guard flusher, the optional audit consumer, and the ops HTTP
// server, with graceful shutdown on SIGINT/SIGTERM.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	pipeline    *usecase.Pipeline
	guard       *middleware.IngestGuard
	consumer    *pkgkafka.Consumer
	auditor     pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates an App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	pipeline *usecase.Pipeline,
	guard *middleware.IngestGuard,
	consumer *pkgkafka.Consumer,
	auditor pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		logger:   lgr,
		pipeline: pipeline,
		guard:    guard,
		consumer: consumer,
		auditor:  auditor,
		chClient: chClient,
	}
}

// SetHTTPHandler injects the ops route handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts everything and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.logger),
		xhttp.WithMetricsPath(a.cfg.Metrics.Path),
	)

	a.guard.Start(ctx)

	go func() {
		if err := a.pipeline.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("pipeline error", applogger.Error(err))
		}
	}()
	a.logger.Info("pipeline started",
		applogger.String("consumer", a.cfg.Bus.Consumer),
		applogger.Bool("dry_run", a.cfg.Execution.DryRun))

	if a.consumer != nil && a.auditor != nil {
		a.consumer.RegisterHandler(a.auditor)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("audit consumer started", applogger.String("topic", a.auditor.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown stops services in reverse start order, best effort.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.guard.Stop()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.RemoveCollector()
	a.logger.Info("shutdown complete")
	return nil
}
