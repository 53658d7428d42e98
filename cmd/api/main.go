package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/config"
	"github.com/DreamDayCrew/FinanceTracker/internal/handler"
	"github.com/DreamDayCrew/FinanceTracker/internal/integrations/cbr"
	"github.com/DreamDayCrew/FinanceTracker/internal/middleware"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/service"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// Initialize layers
	rates := cbr.NewClient(cfg.CBRURL, logger)
	svc := service.NewService(store, nil, rates, logger)
	h := handler.NewHandler(svc, logger)

	// Setup router
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.AuthMiddleware(cfg.JWTSecret, logger))
	h.RegisterRoutes(apiRouter)

	// Next month's occurrences are materialized ahead of time when a schedule is set
	var c *cron.Cron
	if cfg.PregenerateCron != "" {
		c = cron.New()
		_, err = c.AddFunc(cfg.PregenerateCron, func() {
			next := svc.Today().AddDate(0, 1, 0)
			month, year := int(next.Month()), next.Year()
			logger.WithFields(logrus.Fields{"month": month, "year": year}).Info("Pre-generating occurrences")
			if err := svc.PregenerateAll(context.Background(), month, year); err != nil {
				logger.WithError(err).Error("Pre-generation finished with errors")
			}
		})
		if err != nil {
			logger.Fatalf("Failed to schedule pre-generation: %v", err)
		}
		c.Start()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	if c != nil {
		<-c.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}

// openStore returns the configured store and a function releasing it.
func openStore(cfg *config.Config, logger *logrus.Logger) (repository.Store, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemory(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	pg := repository.NewPostgres(db, logger)
	if err := pg.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return pg, func() { db.Close() }, nil
}
