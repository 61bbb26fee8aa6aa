package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/mr1hm/go-drought-forecast/internal/ingestion"
	"github.com/mr1hm/go-drought-forecast/internal/models"
	"github.com/mr1hm/go-drought-forecast/internal/publish"
)

var (
	success = color.New(color.FgGreen)
	faint   = color.New(color.Faint)
)

type IngestCmd struct {
	Latitude  float64 `required:"" help:"Latitude in decimal degrees."`
	Longitude float64 `required:"" help:"Longitude in decimal degrees."`
	Date      string  `help:"Observation date (YYYY-MM-DD). Defaults to today."`
	Retry     bool    `default:"true" negatable:"" help:"Retry while an upstream source is unavailable."`
}

func (c *IngestCmd) Run(rc *runContext) error {
	loc := models.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}

	var asOf time.Time
	if c.Date != "" {
		d, err := time.Parse("2006-01-02", c.Date)
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", models.ErrInvalidInput)
		}
		asOf = d
	}

	var (
		r   *models.WeatherRecord
		err error
	)
	if c.Retry {
		r, err = ingestion.RunWithRetry(rc.ctx, rc.app.Pipeline, loc, asOf, ingestion.NewRetryBackOff(rc.cfg.Ingest.RetryMaxElapsed))
	} else {
		r, err = rc.app.Pipeline.Run(rc.ctx, loc, asOf)
	}
	if err != nil {
		return err
	}

	success.Fprintf(rc.status, "stored record %d ", r.ID)
	faint.Fprintf(rc.status, "(%s, spi %.3f)\n", models.Severity(r.DroughtSeverity), r.SPI)
	return writeJSON(rc.out, publish.NewRecordEvent(r))
}

type ForecastCmd struct {
	Latitude  string `help:"Latitude; omit both coordinates to use the latest record of any location."`
	Longitude string `help:"Longitude; omit both coordinates to use the latest record of any location."`
	Horizon   int    `default:"3" help:"Number of months to forecast (1-12)."`
}

type forecastPoint struct {
	Month             int    `json:"month"`
	Year              int    `json:"year"`
	DroughtOccurrence int    `json:"drought_occurrence"`
	DroughtSeverity   int    `json:"drought_severity"`
	Severity          string `json:"severity"`
}

func (c *ForecastCmd) Run(rc *runContext) error {
	loc, err := coordinates(c.Latitude, c.Longitude)
	if err != nil {
		return err
	}

	points, err := rc.app.Forecaster.Forecast(rc.ctx, loc, c.Horizon)
	if err != nil {
		return err
	}

	out := make([]forecastPoint, 0, len(points))
	for _, p := range points {
		out = append(out, forecastPoint{
			Month:             p.Month,
			Year:              p.Year,
			DroughtOccurrence: p.DroughtOccurrence,
			DroughtSeverity:   p.DroughtSeverity,
			Severity:          models.Severity(p.DroughtSeverity).String(),
		})
	}
	return writeJSON(rc.out, out)
}

type LatestCmd struct {
	Latitude  string `help:"Restrict to records at this latitude (requires --longitude)."`
	Longitude string `help:"Restrict to records at this longitude (requires --latitude)."`
}

func (c *LatestCmd) Run(rc *runContext) error {
	loc, err := coordinates(c.Latitude, c.Longitude)
	if err != nil {
		return err
	}

	var r *models.WeatherRecord
	if loc != nil {
		r, err = rc.app.Store.LatestFor(rc.ctx, *loc)
	} else {
		r, err = rc.app.Store.Latest(rc.ctx)
	}
	if err != nil {
		return fmt.Errorf("latest record: %w", err)
	}
	return writeJSON(rc.out, publish.NewRecordEvent(r))
}

// coordinates parses an optional latitude/longitude pair; both or neither.
func coordinates(lat, lon string) (*models.Coordinates, error) {
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, fmt.Errorf("--latitude and --longitude must be given together: %w", models.ErrInvalidInput)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("latitude %q: %w", lat, models.ErrInvalidInput)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("longitude %q: %w", lon, models.ErrInvalidInput)
	}
	loc := models.Coordinates{Latitude: la, Longitude: lo}
	if !loc.Valid() {
		return nil, fmt.Errorf("coordinates (%v, %v) out of range: %w", la, lo, models.ErrInvalidInput)
	}
	return &loc, nil
}
