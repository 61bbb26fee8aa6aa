package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-drought-forecast/internal/metrics"
	"github.com/mr1hm/go-drought-forecast/internal/models"
	"github.com/mr1hm/go-drought-forecast/internal/predictor"
	"github.com/mr1hm/go-drought-forecast/internal/repository"
	"github.com/mr1hm/go-drought-forecast/internal/spi"
	"github.com/mr1hm/go-drought-forecast/internal/stream"
)

// RecordPublisher forwards persisted records to an external consumer.
type RecordPublisher interface {
	Publish(ctx context.Context, r *models.WeatherRecord) error
}

// PipelineDeps wires a Pipeline. Broadcaster, Publisher and Metrics are optional.
type PipelineDeps struct {
	Weather        CurrentRainfallSource
	Historical     HistoricalRainfallProvider
	Predictor      predictor.DroughtPredictor
	Store          repository.WeatherRecordStore
	BaselineWindow int
	Clock          clockwork.Clock

	Broadcaster *stream.Broadcaster
	Publisher   RecordPublisher
	Metrics     *metrics.Metrics
}

// Pipeline turns one location and date into one persisted, classified WeatherRecord.
type Pipeline struct {
	deps PipelineDeps
}

func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	switch {
	case deps.Weather == nil:
		return nil, fmt.Errorf("pipeline: weather source is required")
	case deps.Historical == nil:
		return nil, fmt.Errorf("pipeline: historical provider is required")
	case deps.Predictor == nil:
		return nil, fmt.Errorf("pipeline: predictor is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("pipeline: store is required")
	case deps.BaselineWindow < 2:
		return nil, fmt.Errorf("pipeline: baseline window must be at least 2, got %d", deps.BaselineWindow)
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{deps: deps}, nil
}

// Run ingests one observation. A zero asOf means now. Either a complete record
// is persisted and returned, or nothing is written and the error says why.
func (p *Pipeline) Run(ctx context.Context, loc models.Coordinates, asOf time.Time) (*models.WeatherRecord, error) {
	start := p.deps.Clock.Now()
	r, err := p.run(ctx, loc, asOf)
	p.observe(start, err)
	if err != nil {
		return nil, err
	}

	if p.deps.Broadcaster != nil {
		p.deps.Broadcaster.Publish(r)
	}
	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.Publish(ctx, r); err != nil {
			slog.Warn("publishing record failed", "id", r.ID, "error", err)
		}
	}
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, loc models.Coordinates, asOf time.Time) (*models.WeatherRecord, error) {
	if !loc.Valid() {
		return nil, fmt.Errorf("coordinates (%v, %v) out of range: %w", loc.Latitude, loc.Longitude, models.ErrInvalidInput)
	}
	if asOf.IsZero() {
		asOf = p.deps.Clock.Now()
	}
	asOf = asOf.UTC()

	rainfall, err := p.deps.Weather.CurrentRainfall(ctx, loc, asOf)
	if err != nil {
		return nil, fmt.Errorf("current rainfall: %w", err)
	}

	window, err := p.deps.Historical.FetchWindow(ctx, p.deps.BaselineWindow)
	if err != nil {
		return nil, fmt.Errorf("baseline window: %w", err)
	}
	if len(window) != p.deps.BaselineWindow {
		return nil, fmt.Errorf("baseline window has %d samples, want %d: %w",
			len(window), p.deps.BaselineWindow, models.ErrDataInsufficient)
	}

	idx, err := spi.Compute(rainfall, window)
	if err != nil {
		return nil, fmt.Errorf("spi: %w", err)
	}

	fv := predictor.NewFeatureVector(idx.SPI, loc)
	class, err := predictor.Classify(ctx, p.deps.Predictor, fv)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	location := loc
	r := &models.WeatherRecord{
		Rainfall:          rainfall,
		LTA:               idx.LTA,
		Std:               idx.Std,
		RainfallAnomaly:   idx.Anomaly,
		SPI:               idx.SPI,
		DroughtOccurrence: class.Occurrence,
		DroughtSeverity:   class.Severity,
		FeatureVersion:    fv.Version,
		Location:          &location,
	}
	r.SetDate(asOf)

	if _, err := p.deps.Store.Insert(ctx, r); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	slog.Info("ingested weather record",
		"id", r.ID,
		"latitude", loc.Latitude,
		"longitude", loc.Longitude,
		"spi", r.SPI,
		"drought_occurrence", r.DroughtOccurrence,
		"drought_severity", r.DroughtSeverity,
	)
	return r, nil
}

func (p *Pipeline) observe(start time.Time, err error) {
	m := p.deps.Metrics
	if m == nil {
		return
	}
	m.IngestionDuration.Observe(p.deps.Clock.Since(start).Seconds())
	if err != nil {
		m.IngestionRuns.WithLabelValues("error").Inc()
		return
	}
	m.IngestionRuns.WithLabelValues("success").Inc()
	m.RecordsStored.Inc()
}
