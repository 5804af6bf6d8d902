// cmd/ingest runs the small sidecar service that browses Google Drive and
// stages validated dataset files into the local data directory.
package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/drive"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Component("ingest")

	driveService, err := drive.NewService(context.Background(), cfg.Drive.CredentialsJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	stageService := drive.NewStageService(driveService, cfg.Dataset.DataDir)

	r := mux.NewRouter()
	driveHandler := drive.NewHandler(driveService, stageService)
	driveHandler.RegisterRoutes(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().Str("addr", addr).Str("data_dir", cfg.Dataset.DataDir).Msg("Ingest service starting")
	log.Fatal().Err(http.ListenAndServe(addr, r)).Msg("Ingest service stopped")
}
