package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	handlers "github.com/de-tools/costpulse/pkg/handlers/analytics"
	costpulsemiddleware "github.com/de-tools/costpulse/pkg/server/middleware"
	"github.com/de-tools/costpulse/pkg/services/alerting"
	"github.com/de-tools/costpulse/pkg/services/allocation"
	"github.com/de-tools/costpulse/pkg/services/anomaly"
	"github.com/de-tools/costpulse/pkg/services/forecast"
	"github.com/de-tools/costpulse/pkg/services/recommendation"
	"github.com/de-tools/costpulse/pkg/services/tagcompliance"
)

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Allocations     allocation.Engine
	Anomalies       anomaly.Detector
	Forecasts       forecast.Generator
	Recommendations recommendation.Scanner
	Alerts          alerting.Evaluator
	Compliance      tagcompliance.Checker
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	handler := handlers.NewHandler(
		config.Dependencies.Allocations,
		config.Dependencies.Anomalies,
		config.Dependencies.Forecasts,
		config.Dependencies.Recommendations,
		config.Dependencies.Alerts,
		config.Dependencies.Compliance,
	)

	router := chi.NewRouter()

	router.Use(costpulsemiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/allocations/run", handler.RunAllocation)
		r.Get("/allocations/teams/{team}", handler.GetTeamCosts)
		r.Post("/anomalies/detect", handler.DetectAnomalies)
		r.Post("/forecasts/generate", handler.GenerateForecast)
		r.Post("/recommendations/scan", handler.ScanRecommendations)
		r.Get("/recommendations", handler.ListRecommendations)
		r.Patch("/recommendations/{id}/status", handler.UpdateRecommendationStatus)
		r.Post("/alerts/check", handler.CheckAlerts)
		r.Get("/alerts/{alert}/history", handler.GetAlertHistory)
		r.Get("/tags/compliance", handler.CheckTagCompliance)
	})
	router.Handle("/metrics", promhttp.Handler())

	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: router,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
