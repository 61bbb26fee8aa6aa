package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-drought-forecast/internal/config"
	"github.com/mr1hm/go-drought-forecast/internal/models"
	"github.com/mr1hm/go-drought-forecast/internal/worker"
)

// Runner runs one ingestion. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, loc models.Coordinates, asOf time.Time) (*models.WeatherRecord, error)
}

// RunWithRetry retries ErrSourceUnavailable under bo. Any other failure is
// returned immediately. Re-running is safe because ingestion only appends.
func RunWithRetry(ctx context.Context, r Runner, loc models.Coordinates, asOf time.Time, bo backoff.BackOff) (*models.WeatherRecord, error) {
	var record *models.WeatherRecord
	operation := func() error {
		var err error
		record, err = r.Run(ctx, loc, asOf)
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrSourceUnavailable) {
			slog.Warn("upstream unavailable, will retry", "latitude", loc.Latitude, "longitude", loc.Longitude, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return record, nil
}

// NewRetryBackOff is the exponential policy used for scheduled and CLI ingestion.
func NewRetryBackOff(maxElapsed time.Duration) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// Manager runs the pipeline for every configured location on a fixed interval.
type Manager struct {
	cfg     *config.Config
	runner  Runner
	clock   clockwork.Clock
	backOff func() backoff.BackOff
	pool    *worker.WorkerPool[models.Coordinates]
	wg      sync.WaitGroup
}

func NewManager(cfg *config.Config, runner Runner, clock clockwork.Clock) *Manager {
	return &Manager{
		cfg:    cfg,
		runner: runner,
		clock:  clock,
		backOff: func() backoff.BackOff {
			return NewRetryBackOff(cfg.Ingest.RetryMaxElapsed)
		},
	}
}

func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, loc models.Coordinates) error {
		_, err := RunWithRetry(ctx, m.runner, loc, m.clock.Now(), m.backOff())
		return err
	}

	m.pool = worker.NewWorkerPool(m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.OnError(func(loc models.Coordinates, err error) {
		slog.Error("scheduled ingestion failed", "latitude", loc.Latitude, "longitude", loc.Longitude, "error", err)
	})
	m.pool.Start(ctx)

	m.wg.Add(1)
	go m.runScheduler(ctx)
}

func (m *Manager) runScheduler(ctx context.Context) {
	defer m.wg.Done()
	slog.Info("starting ingestion scheduler", "locations", len(m.cfg.Ingest.Locations), "interval", m.cfg.Ingest.Interval)

	ticker := m.clock.NewTicker(m.cfg.Ingest.Interval)
	defer ticker.Stop()

	// Initial run
	m.schedule(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingestion scheduler shutting down")
			return
		case <-ticker.Chan():
			m.schedule(ctx)
		}
	}
}

func (m *Manager) schedule(ctx context.Context) {
	for _, loc := range m.cfg.Ingest.Locations {
		if !m.pool.Submit(ctx, loc) {
			return
		}
	}
	slog.Debug("ingestion scheduled", "count", len(m.cfg.Ingest.Locations))
}

// Stop waits for the scheduler and workers to exit. Cancel the Start context first.
func (m *Manager) Stop() {
	m.wg.Wait()
	m.pool.Stop()
	slog.Info("ingestion manager stopped")
}
