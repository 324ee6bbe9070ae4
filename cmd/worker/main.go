// The worker binary runs the inference side of the pipeline: it
// consumes generation tasks one at a time, runs the image engine, and
// publishes the outcome on the result queue.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/itemforge/imagegen/internal/broker"
	"github.com/itemforge/imagegen/internal/config"
	"github.com/itemforge/imagegen/internal/generation"
	"github.com/itemforge/imagegen/internal/platform/logger"
	"github.com/itemforge/imagegen/internal/platform/postgres"
	"github.com/itemforge/imagegen/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	workerTag := workerTag()
	log = log.With(slog.String("worker", workerTag))
	log.Info("starting worker")

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	requestStore := postgres.NewRequestStore(db, log)

	engine, err := generation.NewGenaiEngine(context.Background(), log, cfg.Generation)
	if err != nil {
		return fmt.Errorf("failed to create generation engine: %w", err)
	}

	manager := broker.NewConnectionManager(
		cfg.Broker.URL,
		[]string{cfg.Broker.TaskQueue, cfg.Broker.ResultQueue},
		log,
	)
	if err := manager.Connect(); err != nil {
		log.Warn("broker not reachable at startup, will retry", "error", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("failed to close broker connection", "error", err)
		}
	}()

	publisher := broker.NewPublisher(manager, cfg.Broker.TaskQueue, cfg.Broker.ResultQueue, log)

	taskConsumer := worker.NewConsumer(
		manager,
		requestStore,
		engine,
		publisher,
		cfg.Broker.TaskQueue,
		workerTag,
		time.Duration(cfg.Worker.ReconnectSeconds)*time.Second,
		log,
	)
	taskConsumer.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info("shutdown signal received", "signal", sig.String())

	// Stop waits for the in-flight task, if any, to finish and ack.
	taskConsumer.Stop()

	log.Info("worker stopped")
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// workerTag identifies this worker instance in logs and on the records
// it claims.
func workerTag() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return fmt.Sprintf("worker-%d", os.Getpid())
	}
	return hostname
}
