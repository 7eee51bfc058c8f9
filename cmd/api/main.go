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

	"github.com/gin-gonic/gin"

	"folio/internal/config"
	"folio/internal/database"
	_ "folio/internal/docs" // Import swagger docs
	"folio/internal/logger"
	"folio/internal/pricing"
	"folio/internal/services"
	"folio/internal/validator"
)

// @title           Folio API
// @version         1.0
// @description     Folio reconstructs holdings from an asset ledger and values them in any currency, with pie and monthly bar charts by category.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Price refresh pipeline
	queue := pricing.NewQueue(appConfig.PriceRefreshBuffer)
	httpClient := &http.Client{Timeout: appConfig.PriceProviderTimeout}

	svc := newServices(dbManager.DB(), queue, appConfig)

	refresher := pricing.NewRefresher([]pricing.Provider{
		pricing.NewYahooProvider(httpClient),
		pricing.NewCoinGeckoProvider(httpClient, "usd"),
		pricing.NewForexProvider(httpClient),
	}, services.NewPriceSink(svc.prices), appConfig.PriceProviderTimeout)
	if err := queue.Start(ctx, appConfig.PriceRefreshWorkers, refresher.Handle); err != nil {
		return fmt.Errorf("failed to start price refresh workers: %w", err)
	}

	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(appConfig, svc)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Folio server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("server shutdown error: %v", err)
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warnf("price refresh queue shutdown error: %v", err)
	}
	return nil
}
