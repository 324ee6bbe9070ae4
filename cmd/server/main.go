// The server binary runs the gateway: the HTTP API that accepts
// generation requests and reports their status, the dispatcher that
// hands tasks to the workers, and the result consumer that folds worker
// outcomes back into the request records.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/itemforge/imagegen/internal/api"
	apimiddleware "github.com/itemforge/imagegen/internal/api/middleware"
	"github.com/itemforge/imagegen/internal/broker"
	"github.com/itemforge/imagegen/internal/config"
	"github.com/itemforge/imagegen/internal/consumer"
	"github.com/itemforge/imagegen/internal/platform/logger"
	"github.com/itemforge/imagegen/internal/platform/postgres"
	"github.com/itemforge/imagegen/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
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
	log.Info("starting gateway", "port", cfg.Server.Port)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	if err := postgres.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	requestStore := postgres.NewRequestStore(db, log)

	manager := broker.NewConnectionManager(
		cfg.Broker.URL,
		[]string{cfg.Broker.TaskQueue, cfg.Broker.ResultQueue},
		log,
	)
	// The broker may come up after us; consumers and publishers
	// reconnect on demand.
	if err := manager.Connect(); err != nil {
		log.Warn("broker not reachable at startup, will retry", "error", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("failed to close broker connection", "error", err)
		}
	}()

	publisher := broker.NewPublisher(manager, cfg.Broker.TaskQueue, cfg.Broker.ResultQueue, log)
	generationService := service.NewGenerationService(requestStore, publisher, log)

	resultConsumer := consumer.NewResultConsumer(
		manager,
		requestStore,
		cfg.Broker.ResultQueue,
		time.Duration(cfg.Broker.ReconnectSeconds)*time.Second,
		log,
	)
	resultConsumer.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(generationService),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		resultConsumer.Stop()
		return fmt.Errorf("HTTP server failed: %w", err)
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	resultConsumer.Stop()

	log.Info("gateway stopped")
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func newRouter(generationService api.GenerationService) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(apimiddleware.Trace)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	handler := api.NewGenerationHandler(generationService)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", handler.Generate)
		r.Get("/status/{request_id}", handler.GetStatus)
	})

	return r
}
