// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/api/handlers"
	"github.com/andresuchdata/stocksim/internal/api/middleware"
	"github.com/andresuchdata/stocksim/internal/service"
)

type Services struct {
	Dataset    *service.DatasetService
	Forecast   *service.ForecastService
	Simulation *service.SimulationService
	KPI        *service.KPIService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.Forecast != nil {
			forecastHandler := handlers.NewForecastHandler(services.Forecast)
			apiGroup.GET("/forecast", forecastHandler.GetSeries)
			apiGroup.GET("/kpi/accuracy", forecastHandler.GetAccuracy)
		}

		if services.Simulation != nil {
			simulationHandler := handlers.NewSimulationHandler(services.Simulation)
			apiGroup.POST("/simulate", simulationHandler.Simulate)
			apiGroup.GET("/policies", simulationHandler.ListPolicies)

			runsGroup := apiGroup.Group("/runs")
			{
				runsGroup.GET("", simulationHandler.ListRuns)
				runsGroup.GET("/:id", simulationHandler.GetRun)
			}
		}

		if services.KPI != nil {
			kpiHandler := handlers.NewKPIHandler(services.KPI)
			apiGroup.GET("/kpi/:scope", kpiHandler.GetReport)
		}

		if services.Dataset != nil {
			datasetHandler := handlers.NewDatasetHandler(services.Dataset)
			apiGroup.GET("/dataset", datasetHandler.Stats)
			apiGroup.POST("/dataset/reload", datasetHandler.Reload)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
