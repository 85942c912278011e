package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"campusdelivery/cmd"
	"campusdelivery/internal/adapters/out/postgres/orderrepo"
	"campusdelivery/internal/adapters/out/postgres/partnerrepo"
	"campusdelivery/internal/adapters/out/postgres/sessionrepo"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config := getConfig(logger)

	gormDB, err := gorm.Open(postgresdriver.Open(config.DSN()), &gorm.Config{})
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	if err = gormDB.AutoMigrate(
		&orderrepo.OrderDTO{},
		&orderrepo.ItemDTO{},
		&partnerrepo.PartnerDTO{},
		&sessionrepo.SessionDTO{},
	); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	root, err := cmd.NewCompositionRoot(config, gormDB, logger)
	if err != nil {
		logger.Error("composition failed", "error", err)
		os.Exit(1)
	}
	defer root.Shutdown()

	// Orders that were mid-flight when the previous process died get their
	// status timeouts re-armed.
	if err = root.Orchestrator.RecoverTimers(context.Background()); err != nil {
		logger.Error("timer recovery failed", "error", err)
		os.Exit(1)
	}

	jobManager := root.CreateJobManager()
	if err = jobManager.StartAll(); err != nil {
		logger.Error("job startup failed", "error", err)
		os.Exit(1)
	}
	defer jobManager.StopAll()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.WARN)
	e.Use(middleware.Recover())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})
	root.CreateHTTPServer().RegisterRoutes(e)

	go func() {
		if serveErr := e.Start(fmt.Sprintf("0.0.0.0:%s", config.HTTPPort)); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("http server stopped", "error", serveErr)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func getConfig(logger *slog.Logger) cmd.Config {
	if err := godotenv.Load(".env"); err != nil {
		logger.Warn("no .env file loaded", "error", err)
	}

	return cmd.Config{
		HTTPPort:    envOr("HTTP_PORT", "8080"),
		DBHost:      envOr("DB_HOST", "localhost"),
		DBPort:      envOr("DB_PORT", "5432"),
		DBUser:      envOr("DB_USER", "postgres"),
		DBPassword:  envOr("DB_PASSWORD", "postgres"),
		DBName:      envOr("DB_NAME", "campusdelivery"),
		DBSslMode:   envOr("DB_SSLMODE", "disable"),
		GeocoderURL: os.Getenv("GEOCODER_URL"),
	}
}

func envOr(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
