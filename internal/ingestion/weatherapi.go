package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

// CurrentRainfallSource returns the total precipitation in mm for one day at a point.
type CurrentRainfallSource interface {
	CurrentRainfall(ctx context.Context, loc models.Coordinates, date time.Time) (float64, error)
}

type weatherAPIResponse struct {
	Forecast struct {
		ForecastDay []weatherAPIDay `json:"forecastday"`
	} `json:"forecast"`
}

type weatherAPIDay struct {
	Date string `json:"date"`
	Day  struct {
		TotalPrecipMM *float64 `json:"totalprecip_mm"`
	} `json:"day"`
}

// WeatherAPIClient reads daily totals from the weatherapi.com history endpoint.
type WeatherAPIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewWeatherAPIClient(baseURL, apiKey string, timeout time.Duration) *WeatherAPIClient {
	return &WeatherAPIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *WeatherAPIClient) CurrentRainfall(ctx context.Context, loc models.Coordinates, date time.Time) (float64, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, fmt.Errorf("weather source url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("q", strconv.FormatFloat(loc.Latitude, 'f', -1, 64)+","+strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("dt", date.Format("2006-01-02"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("weather fetch: %w: %w", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("weather fetch: unexpected status %d: %w", resp.StatusCode, models.ErrSourceUnavailable)
	}

	var data weatherAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decoding weather response: %w: %w", models.ErrSourceUnavailable, err)
	}

	if len(data.Forecast.ForecastDay) == 0 || data.Forecast.ForecastDay[0].Day.TotalPrecipMM == nil {
		return 0, fmt.Errorf("weather response has no totalprecip_mm: %w", models.ErrSourceUnavailable)
	}
	mm := *data.Forecast.ForecastDay[0].Day.TotalPrecipMM
	if mm < 0 {
		return 0, fmt.Errorf("negative precipitation %v: %w", mm, models.ErrSourceUnavailable)
	}
	return mm, nil
}
