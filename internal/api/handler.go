package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-drought-forecast/internal/forecast"
	"github.com/mr1hm/go-drought-forecast/internal/models"
	"github.com/mr1hm/go-drought-forecast/internal/repository"
	"github.com/mr1hm/go-drought-forecast/internal/stream"
)

const (
	defaultRecentLimit = 12
	maxRecentLimit     = 120
)

type Forecaster interface {
	Forecast(ctx context.Context, loc *models.Coordinates, horizon int) ([]models.ForecastPoint, error)
}

type Ingester interface {
	Run(ctx context.Context, loc models.Coordinates, asOf time.Time) (*models.WeatherRecord, error)
}

type Handler struct {
	store       repository.WeatherRecordStore
	forecaster  Forecaster
	ingester    Ingester
	broadcaster *stream.Broadcaster
}

// NewHandler builds the HTTP handlers. ingester and broadcaster may be nil,
// in which case their routes answer 503.
func NewHandler(store repository.WeatherRecordStore, forecaster Forecaster, ingester Ingester, broadcaster *stream.Broadcaster) *Handler {
	return &Handler{
		store:       store,
		forecaster:  forecaster,
		ingester:    ingester,
		broadcaster: broadcaster,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/weather_data", h.getWeatherData)
	r.GET("/weather_data/recent", h.getRecentWeatherData)
	r.GET("/weather_data/stream", h.streamWeatherData)
	r.GET("/predict_next_three_months", h.predictNextThreeMonths)
	r.POST("/ingest", h.ingest)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type weatherDataResponse struct {
	Date              string `json:"date"`
	Year              int    `json:"year"`
	Month             int    `json:"month"`
	DroughtOccurrence int    `json:"drought_occurrence"`
	DroughtSeverity   int    `json:"drought_severity"`
}

type forecastResponse struct {
	Month             int `json:"month"`
	Year              int `json:"year"`
	DroughtOccurrence int `json:"drought_occurrence"`
	DroughtSeverity   int `json:"drought_severity"`
}

type recordResponse struct {
	ID                int64    `json:"id"`
	Date              string   `json:"date"`
	Year              int      `json:"year"`
	Month             int      `json:"month"`
	Rainfall          float64  `json:"rainfall"`
	LTA               float64  `json:"lta"`
	Std               float64  `json:"std"`
	RainfallAnomaly   float64  `json:"rainfall_anomaly"`
	SPI               float64  `json:"spi"`
	DroughtOccurrence int      `json:"drought_occurrence"`
	DroughtSeverity   int      `json:"drought_severity"`
	Severity          string   `json:"severity"`
	FeatureVersion    string   `json:"feature_version"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
}

func toRecordResponse(r *models.WeatherRecord) recordResponse {
	resp := recordResponse{
		ID:                r.ID,
		Date:              r.DateString(),
		Year:              r.Year,
		Month:             r.Month,
		Rainfall:          r.Rainfall,
		LTA:               r.LTA,
		Std:               r.Std,
		RainfallAnomaly:   r.RainfallAnomaly,
		SPI:               r.SPI,
		DroughtOccurrence: r.DroughtOccurrence,
		DroughtSeverity:   r.DroughtSeverity,
		Severity:          models.Severity(r.DroughtSeverity).String(),
		FeatureVersion:    r.FeatureVersion,
	}
	if r.Location != nil {
		resp.Latitude = &r.Location.Latitude
		resp.Longitude = &r.Location.Longitude
	}
	return resp
}

func (h *Handler) getWeatherData(c *gin.Context) {
	r, err := h.store.Latest(c.Request.Context())
	if err != nil {
		writeError(c, err, "no weather data available", "failed to fetch weather data")
		return
	}

	c.JSON(http.StatusOK, weatherDataResponse{
		Date:              r.DateString(),
		Year:              r.Year,
		Month:             r.Month,
		DroughtOccurrence: r.DroughtOccurrence,
		DroughtSeverity:   r.DroughtSeverity,
	})
}

func (h *Handler) getRecentWeatherData(c *gin.Context) {
	loc, err := requireLocation(c)
	if err != nil {
		writeError(c, err, "", "")
		return
	}

	limit := defaultRecentLimit
	if l := c.Query("limit"); l != "" {
		lim, err := strconv.Atoi(l)
		if err != nil || lim < 1 || lim > maxRecentLimit {
			writeError(c, fmt.Errorf("limit must be between 1 and %d: %w", maxRecentLimit, models.ErrInvalidInput), "", "")
			return
		}
		limit = lim
	}

	records, err := h.store.Recent(c.Request.Context(), loc, limit)
	if err != nil {
		writeError(c, err, "no weather data for location", "failed to fetch weather data")
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(records))
}

func (h *Handler) predictNextThreeMonths(c *gin.Context) {
	loc, err := optionalLocation(c)
	if err != nil {
		writeError(c, err, "", "")
		return
	}

	points, err := h.forecaster.Forecast(c.Request.Context(), loc, forecast.DefaultHorizon)
	if err != nil {
		writeError(c, err, "no historical data for location", "failed to produce forecast")
		return
	}

	resp := make([]forecastResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, forecastResponse{
			Month:             p.Month,
			Year:              p.Year,
			DroughtOccurrence: p.DroughtOccurrence,
			DroughtSeverity:   p.DroughtSeverity,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ingest(c *gin.Context) {
	if h.ingester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion is not configured"})
		return
	}

	loc, err := requireLocation(c)
	if err != nil {
		writeError(c, err, "", "")
		return
	}

	var asOf time.Time
	if d := c.Query("date"); d != "" {
		asOf, err = time.Parse("2006-01-02", d)
		if err != nil {
			writeError(c, fmt.Errorf("date must be YYYY-MM-DD: %w", models.ErrInvalidInput), "", "")
			return
		}
	}

	r, err := h.ingester.Run(c.Request.Context(), loc, asOf)
	if err != nil {
		writeError(c, err, "", "ingestion failed")
		return
	}
	c.JSON(http.StatusCreated, toRecordResponse(r))
}

func (h *Handler) streamWeatherData(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming is not configured"})
		return
	}

	loc, err := optionalLocation(c)
	if err != nil {
		writeError(c, err, "", "")
		return
	}

	id, records := h.broadcaster.Subscribe(loc)
	defer h.broadcaster.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-records:
			if !ok {
				return
			}
			c.SSEvent("record", toRecordResponse(r))
			c.Writer.Flush()
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps err onto 400, 404 or 500. Empty messages fall back to err's text.
func writeError(c *gin.Context, err error, notFoundMsg, internalMsg string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = err.Error()
		}
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	default:
		slog.Error("request failed",
			"request_id", c.GetString(requestIDKey),
			"path", c.FullPath(),
			"error", err,
		)
		if internalMsg == "" {
			internalMsg = err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
	}
}

// optionalLocation reads latitude/longitude. Both or neither must be present.
func optionalLocation(c *gin.Context) (*models.Coordinates, error) {
	lat, hasLat := c.GetQuery("latitude")
	lon, hasLon := c.GetQuery("longitude")
	if !hasLat && !hasLon {
		return nil, nil
	}
	if hasLat != hasLon {
		return nil, fmt.Errorf("latitude and longitude must be given together: %w", models.ErrInvalidInput)
	}
	loc, err := parseCoordinates(lat, lon)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func requireLocation(c *gin.Context) (models.Coordinates, error) {
	loc, err := optionalLocation(c)
	if err != nil {
		return models.Coordinates{}, err
	}
	if loc == nil {
		return models.Coordinates{}, fmt.Errorf("latitude and longitude are required: %w", models.ErrInvalidInput)
	}
	return *loc, nil
}

func parseCoordinates(lat, lon string) (models.Coordinates, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("latitude %q is not a number: %w", lat, models.ErrInvalidInput)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("longitude %q is not a number: %w", lon, models.ErrInvalidInput)
	}
	loc := models.Coordinates{Latitude: la, Longitude: lo}
	if !loc.Valid() {
		return models.Coordinates{}, fmt.Errorf("coordinates (%v, %v) out of range: %w", la, lo, models.ErrInvalidInput)
	}
	return loc, nil
}
