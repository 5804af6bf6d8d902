// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/api"
	"github.com/andresuchdata/stocksim/internal/cache"
	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/policy"
	"github.com/andresuchdata/stocksim/internal/repository"
	"github.com/andresuchdata/stocksim/internal/repository/postgres"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func main() {
	cfg := config.Load()

	if cfg.Server.Mode == "debug" {
		logger.SetLevel("debug")
		gin.SetMode(gin.DebugMode)
	} else {
		logger.SetLevel("info")
		gin.SetMode(gin.ReleaseMode)
	}

	summaryCache, err := cache.NewSummaryCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Summary cache unavailable, running without it")
		summaryCache = cache.NewNoopSummaryCache()
	}
	kpiCache, err := cache.NewKPICache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("KPI cache unavailable, running without it")
		kpiCache = cache.NewNoopKPICache()
	}

	datasetService, err := service.NewDatasetService(cfg.Dataset, summaryCache, kpiCache)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.Dataset.DatasetPath).Msg("Failed to load dataset")
	}

	presets, err := policy.LoadDir(cfg.Dataset.PolicyDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log.Fatal().Err(err).Str("dir", cfg.Dataset.PolicyDir).Msg("Failed to load policy presets")
		}
		logger.Log.Warn().Str("dir", cfg.Dataset.PolicyDir).Msg("Policy dir missing, only default parameters available")
		presets = map[string]policy.Preset{}
	}

	// Run history needs Postgres; without it the API still serves
	// simulations, it just cannot persist them.
	var runRepo repository.RunRepository
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Database unavailable, run persistence disabled")
	} else {
		defer db.Close()
		runRepo = postgres.NewRunRepository(db)
	}

	services := &api.Services{
		Dataset:    datasetService,
		Forecast:   service.NewForecastService(datasetService),
		Simulation: service.NewSimulationService(datasetService, presets, cfg.Simulation.Params(), summaryCache, runRepo),
		KPI:        service.NewKPIService(datasetService, kpiCache),
	}

	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// In-flight requests get 5 seconds to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
