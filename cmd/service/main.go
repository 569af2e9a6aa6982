package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/surfsup-climate-api/internal/config"
	"github.com/kjstillabower/surfsup-climate-api/internal/degraded"
	httphandler "github.com/kjstillabower/surfsup-climate-api/internal/http"
	"github.com/kjstillabower/surfsup-climate-api/internal/lifecycle"
	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
	"github.com/kjstillabower/surfsup-climate-api/internal/service"
	"github.com/kjstillabower/surfsup-climate-api/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	openCtx, openCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Open(openCtx, cfg.DatabasePath, store.Options{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		openCancel()
		logger.Fatal("database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	if err := store.VerifySchema(openCtx, db); err != nil {
		openCancel()
		_ = store.Close(db)
		logger.Fatal("database schema", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}

	climateStore := store.NewSQLiteStore(db, logger)
	summary, err := climateStore.Summary(openCtx)
	openCancel()
	if err != nil {
		logger.Warn("dataset summary unavailable", zap.Error(err))
	} else {
		observability.SetDatasetSummary(summary)
		logger.Info("dataset loaded",
			zap.String("path", cfg.DatabasePath),
			zap.Int("measurements", summary.MeasurementRows),
			zap.Int("stations", summary.StationRows),
			zap.String("first_date", summary.FirstDate),
			zap.String("last_date", summary.LastDate))
		if summary.MeasurementRows == 0 {
			logger.Warn("measurement table is empty; date-window routes will answer 500")
		}
	}

	climateService := service.NewClimateService(climateStore)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()
	degraded.StartRecoveryListener(appCtx, climateStore.Ping, cfg.RecoveryInitial, cfg.RecoveryMax, logger)

	handler := httphandler.NewHandler(climateService, climateStore, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterOptions{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		TestingMode:    cfg.TestingMode,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	appCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := store.Close(db); err != nil {
		logger.Error("database close", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Duration("drained_in", lifecycle.DrainingFor()))
	if err := observability.FlushTelemetry(logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
