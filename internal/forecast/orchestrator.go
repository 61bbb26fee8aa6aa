// Package forecast projects drought labels for the months following the latest record.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mr1hm/go-drought-forecast/internal/metrics"
	"github.com/mr1hm/go-drought-forecast/internal/models"
	"github.com/mr1hm/go-drought-forecast/internal/predictor"
	"github.com/mr1hm/go-drought-forecast/internal/repository"
)

const (
	DefaultHorizon = 3
	MaxHorizon     = 12
)

// Orchestrator reuses the latest persisted feature vector unchanged for every
// step of the horizon. No ingestion is run for future dates.
type Orchestrator struct {
	store     repository.WeatherRecordStore
	predictor predictor.DroughtPredictor
	metrics   *metrics.Metrics
}

func NewOrchestrator(store repository.WeatherRecordStore, p predictor.DroughtPredictor, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:     store,
		predictor: p,
		metrics:   m,
	}
}

// Forecast returns horizon consecutive months after the latest record for loc,
// or after the global latest record when loc is nil.
func (o *Orchestrator) Forecast(ctx context.Context, loc *models.Coordinates, horizon int) ([]models.ForecastPoint, error) {
	points, err := o.forecast(ctx, loc, horizon)
	o.observe(err)
	return points, err
}

func (o *Orchestrator) forecast(ctx context.Context, loc *models.Coordinates, horizon int) ([]models.ForecastPoint, error) {
	if horizon < 1 || horizon > MaxHorizon {
		return nil, fmt.Errorf("horizon %d outside [1, %d]: %w", horizon, MaxHorizon, models.ErrInvalidInput)
	}

	var (
		latest *models.WeatherRecord
		err    error
	)
	if loc != nil {
		if !loc.Valid() {
			return nil, fmt.Errorf("coordinates (%v, %v) out of range: %w", loc.Latitude, loc.Longitude, models.ErrInvalidInput)
		}
		latest, err = o.store.LatestFor(ctx, *loc)
	} else {
		latest, err = o.store.Latest(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("latest record: %w", err)
	}

	fv, err := predictor.FeaturesFromRecord(latest)
	if err != nil {
		return nil, err
	}

	points := make([]models.ForecastPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		year, month := models.AddMonths(latest.Year, latest.Month, step)

		class, err := predictor.Classify(ctx, o.predictor, fv)
		if err != nil {
			return nil, fmt.Errorf("forecast %d-%02d: %w", year, month, err)
		}

		points = append(points, models.ForecastPoint{
			Year:              year,
			Month:             month,
			DroughtOccurrence: class.Occurrence,
			DroughtSeverity:   class.Severity,
		})
	}

	slog.Debug("forecast produced", "from_record", latest.ID, "horizon", horizon)
	return points, nil
}

func (o *Orchestrator) observe(err error) {
	if o.metrics == nil {
		return
	}
	switch {
	case err == nil:
		o.metrics.Forecasts.WithLabelValues("success").Inc()
	case errors.Is(err, models.ErrNotFound):
		o.metrics.Forecasts.WithLabelValues("not_found").Inc()
	default:
		o.metrics.Forecasts.WithLabelValues("error").Inc()
	}
}
