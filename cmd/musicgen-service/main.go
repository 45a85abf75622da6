// main package for the musicgen-service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/config"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/dispatch"
	"github.com/book-expert/musicgen-service/internal/engine"
	"github.com/book-expert/musicgen-service/internal/gateway/httpgw"
	"github.com/book-expert/musicgen-service/internal/gateway/natsgw"
	"github.com/book-expert/musicgen-service/internal/jobs"
	"github.com/book-expert/musicgen-service/internal/notify"
	"github.com/book-expert/musicgen-service/internal/sentinel"
	"github.com/book-expert/musicgen-service/internal/worker"
	"github.com/nats-io/nats.go"
)

const httpShutdownTimeout = 10 * time.Second

// disabledGenerator stands in when model initialization failed. The sentinel
// gates every request before the lane could reach it; this is the backstop.
type disabledGenerator struct {
	initErr error
}

func (d disabledGenerator) Generate(context.Context, string, int) (core.Clip, error) {
	return core.Clip{}, fmt.Errorf("generation disabled: %w", d.initErr)
}

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "musicgen-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func initGenerator(cfg *config.Config, marker *sentinel.File, log *logger.Logger) core.Generator {
	gen, err := engine.New(engine.Config{
		BinaryPath: cfg.Service.InferenceBinaryPath,
		ModelPath:  cfg.Service.ModelPath,
	}, log)
	if err == nil {
		log.System("Generation engine initialized with model %s", cfg.Service.ModelPath)

		return gen
	}

	// The process keeps serving so callers get a structured init error
	// instead of connection refusals; only a restart can recover.
	log.Error("Failed to initialize generation engine: %v", err)

	writeErr := marker.Write("failed to initialize model: " + err.Error())
	if writeErr != nil {
		log.Error("Failed to record init sentinel: %v", writeErr)
	}

	return disabledGenerator{initErr: err}
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, log)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	marker := sentinel.New(cfg.Paths.InitErrorFile)

	err := marker.Clear()
	if err != nil {
		log.Warn("Could not clear stale init sentinel: %v", err)
	}

	gen := initGenerator(cfg, marker, log)

	store := jobs.NewStore()
	notifier := notify.New(
		time.Duration(cfg.Service.UploadTimeoutSeconds)*time.Second,
		time.Duration(cfg.Service.WebhookTimeoutSeconds)*time.Second,
		log,
	)
	lane := worker.NewLane(store, gen, notifier, log, worker.Config{
		QueueCapacity:       cfg.Service.QueueCapacity,
		AlternateSampleRate: cfg.Service.AlternateSampleRate,
	})
	dispatcher := dispatch.New(store, lane, notifier, marker, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		runErr := lane.Run(ctx)
		if runErr != nil {
			log.Error("Worker lane stopped: %v", runErr)
		}
	}()

	natsErrCh := startNATS(ctx, cfg, dispatcher, log)
	httpErrCh, httpServer := startHTTP(cfg, dispatcher, log)

	log.System("musicgen-service ready (NATS subject: %s, HTTP: %s)",
		cfg.NATS.GenerateSubject, cfg.HTTP.ListenAddress)

	select {
	case <-ctx.Done():
	case err = <-natsErrCh:
		return err
	case err = <-httpErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("http shutdown: %w", shutdownErr)
	}

	return nil
}

func startNATS(
	ctx context.Context,
	cfg *config.Config,
	dispatcher *dispatch.Dispatcher,
	log *logger.Logger,
) <-chan error {
	errCh := make(chan error, 1)

	if cfg.NATS.URL == "" {
		return errCh
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		errCh <- fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)

		return errCh
	}

	handleTimeout := natsgw.DefaultHandleTimeout
	if cfg.Service.SyncMode {
		handleTimeout = time.Duration(cfg.Service.GenerateTimeoutSeconds) * time.Second
	}

	gateway := natsgw.New(
		natsConnection,
		cfg.NATS.GenerateSubject,
		dispatcher,
		log,
		cfg.Service.SyncMode,
		handleTimeout,
	)

	go func() {
		runErr := gateway.Run(ctx)
		if runErr != nil {
			errCh <- fmt.Errorf("nats gateway: %w", runErr)
		}

		natsConnection.Close()
	}()

	return errCh
}

func startHTTP(
	cfg *config.Config,
	dispatcher *dispatch.Dispatcher,
	log *logger.Logger,
) (<-chan error, *http.Server) {
	errCh := make(chan error, 1)

	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           httpgw.New(dispatcher, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		listenErr := server.ListenAndServe()
		if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http gateway: %w", listenErr)
		}
	}()

	return errCh, server
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
