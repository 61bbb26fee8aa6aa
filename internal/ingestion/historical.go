package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/mr1hm/go-drought-forecast/internal/metrics"
	"github.com/mr1hm/go-drought-forecast/internal/models"
)

// HistoricalRainfallProvider supplies the trailing baseline window, oldest first.
// Implementations return exactly size samples or fail; every call is safe to retry.
type HistoricalRainfallProvider interface {
	FetchWindow(ctx context.Context, size int) ([]float64, error)
}

// CSVHistoricalProvider reads a precipitation column out of a remote CSV dataset.
type CSVHistoricalProvider struct {
	url    string
	column string
	client *http.Client
}

func NewCSVHistoricalProvider(url, column string, timeout time.Duration) *CSVHistoricalProvider {
	return &CSVHistoricalProvider{
		url:    url,
		column: column,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *CSVHistoricalProvider) FetchWindow(ctx context.Context, size int) ([]float64, error) {
	series, err := p.fetchSeries(ctx)
	if err != nil {
		return nil, err
	}
	return tail(series, size)
}

func (p *CSVHistoricalProvider) fetchSeries(ctx context.Context) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("historical fetch: %w: %w", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("historical fetch: unexpected status %d: %w", resp.StatusCode, models.ErrSourceUnavailable)
	}

	series, err := parseColumn(resp.Body, p.column)
	if err != nil {
		return nil, fmt.Errorf("historical dataset: %w: %w", models.ErrSourceUnavailable, err)
	}
	return series, nil
}

// parseColumn returns every value of column in file order. Missing cells are skipped.
func parseColumn(r io.Reader, column string) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}

	var values []float64
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if idx >= len(row) || isMissing(row[idx]) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, fmt.Errorf("line %d: bad %s value %q", line, column, row[idx])
		}
		values = append(values, v)
	}
	return values, nil
}

func isMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "nan", "null":
		return true
	}
	return false
}

func tail(series []float64, size int) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size %d: %w", size, models.ErrInvalidInput)
	}
	if len(series) < size {
		return nil, fmt.Errorf("have %d samples, need %d: %w", len(series), size, models.ErrDataInsufficient)
	}
	out := make([]float64, size)
	copy(out, series[len(series)-size:])
	return out, nil
}

// seriesFetcher is implemented by providers whose full series can be cached.
type seriesFetcher interface {
	fetchSeries(ctx context.Context) ([]float64, error)
}

// CachedHistoricalProvider keeps the last successfully fetched series for ttl.
// The window size is applied per call, so caching never changes a result.
type CachedHistoricalProvider struct {
	source  seriesFetcher
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *metrics.Metrics

	refresh   singleflight.Group
	mu        sync.Mutex
	series    []float64
	fetchedAt time.Time
}

func NewCachedHistoricalProvider(source *CSVHistoricalProvider, ttl time.Duration, clock clockwork.Clock, m *metrics.Metrics) *CachedHistoricalProvider {
	return &CachedHistoricalProvider{
		source:  source,
		ttl:     ttl,
		clock:   clock,
		metrics: m,
	}
}

func (c *CachedHistoricalProvider) FetchWindow(ctx context.Context, size int) ([]float64, error) {
	series, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return tail(series, size)
}

// get serves the cached series or joins a single shared refresh. The refresh
// is detached from the caller's cancellation and bounded by the client timeout.
func (c *CachedHistoricalProvider) get(ctx context.Context) ([]float64, error) {
	c.mu.Lock()
	if c.series != nil && c.clock.Since(c.fetchedAt) < c.ttl {
		series := c.series
		c.mu.Unlock()
		c.observe("hit")
		return series, nil
	}
	c.mu.Unlock()
	c.observe("miss")

	ch := c.refresh.DoChan("series", func() (any, error) {
		series, err := c.source.fetchSeries(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.series = series
		c.fetchedAt = c.clock.Now()
		c.mu.Unlock()
		slog.Debug("historical series refreshed", "samples", len(series))
		return series, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float64), nil
	}
}

func (c *CachedHistoricalProvider) observe(result string) {
	if c.metrics != nil {
		c.metrics.HistoricalCache.WithLabelValues(result).Inc()
	}
}
