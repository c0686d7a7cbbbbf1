package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/api"
	"github.com/alliefeldman/climatecoachbot/internal/config"
	"github.com/alliefeldman/climatecoachbot/internal/db"
	"github.com/alliefeldman/climatecoachbot/internal/engine"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	var store db.ReportStore
	if cfg.DBConnectionString != "" {
		pg, err := db.NewPostgresStore(cfg.DBConnectionString, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer pg.Close()

		if err := retry(3, 5*time.Second, pg.Migrate); err != nil {
			logger.Fatalf("Failed to run migrations after retries: %v", err)
		}
		store = pg
	} else {
		logger.Warn("DB_CONNECTION_STRING not set, reports will not be persisted")
	}

	service, err := engine.NewFromConfig(cfg, store, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}

	if cfg.LogLevel < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.NewHandler(service, store != nil, logger), logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if len(cfg.Repositories) > 0 {
		go service.StartSchedule(ctx, cfg.Repositories, cfg.Schedule.Interval)
	} else {
		logger.Info("No repositories configured, scheduled collection disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server exited properly")
}

// retry retries a function up to a certain number of attempts with a delay between attempts
func retry(attempts int, sleep time.Duration, fn func() error) error {
	if err := fn(); err != nil {
		if attempts--; attempts > 0 {
			time.Sleep(sleep)
			return retry(attempts, sleep, fn)
		}
		return err
	}
	return nil
}
