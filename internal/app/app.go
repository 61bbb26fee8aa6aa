// Package app assembles the store, models, sources and pipeline from configuration.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-drought-forecast/internal/config"
	"github.com/mr1hm/go-drought-forecast/internal/forecast"
	"github.com/mr1hm/go-drought-forecast/internal/ingestion"
	"github.com/mr1hm/go-drought-forecast/internal/metrics"
	"github.com/mr1hm/go-drought-forecast/internal/predictor"
	"github.com/mr1hm/go-drought-forecast/internal/publish"
	"github.com/mr1hm/go-drought-forecast/internal/repository"
	"github.com/mr1hm/go-drought-forecast/internal/stream"
)

type App struct {
	Store       *repository.SQLiteDB
	Pipeline    *ingestion.Pipeline
	Forecaster  *forecast.Orchestrator
	Broadcaster *stream.Broadcaster
	// Ingester is the pipeline when a weather API key is configured, nil otherwise.
	Ingester ingestion.Runner

	publisher *publish.KafkaPublisher
}

// New opens the store and wires every component. m may be nil.
func New(cfg *config.Config, clock clockwork.Clock, m *metrics.Metrics) (*App, error) {
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	droughtModels, err := predictor.NewModels(
		predictor.NewTFServingClassifier(cfg.Models.OccurrenceURL, cfg.Models.Timeout),
		predictor.NewTFServingClassifier(cfg.Models.SeverityURL, cfg.Models.Timeout),
		cfg.Models.SeverityClasses,
		m,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize models: %w", err)
	}

	csv := ingestion.NewCSVHistoricalProvider(cfg.Sources.HistoricalURL, cfg.Sources.HistoricalColumn, cfg.Sources.Timeout)
	var historical ingestion.HistoricalRainfallProvider = csv
	if cfg.Sources.HistoricalCacheTTL > 0 {
		historical = ingestion.NewCachedHistoricalProvider(csv, cfg.Sources.HistoricalCacheTTL, clock, m)
	}

	a := &App{
		Store:       db,
		Forecaster:  forecast.NewOrchestrator(db, droughtModels, m),
		Broadcaster: stream.NewBroadcaster(),
	}

	deps := ingestion.PipelineDeps{
		Weather:        ingestion.NewWeatherAPIClient(cfg.Sources.WeatherAPIURL, cfg.Sources.WeatherAPIKey, cfg.Sources.Timeout),
		Historical:     historical,
		Predictor:      droughtModels,
		Store:          db,
		BaselineWindow: cfg.Sources.BaselineWindow,
		Clock:          clock,
		Broadcaster:    a.Broadcaster,
		Metrics:        m,
	}
	if cfg.Kafka.Enabled() {
		a.publisher = publish.NewKafkaPublisher(cfg.Kafka)
		deps.Publisher = a.publisher
		slog.Info("publishing records to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	a.Pipeline, err = ingestion.NewPipeline(deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Sources.WeatherAPIKey != "" {
		a.Ingester = a.Pipeline
	} else {
		slog.Warn("WEATHERAPI_KEY not set, on-demand ingestion disabled")
	}
	return a, nil
}

// Close ends live streams, flushes the publisher and closes the store.
func (a *App) Close() error {
	a.Broadcaster.Close()
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
