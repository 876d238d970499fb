// Package ingestion feeds scouting observations into the forecast engine
// through a worker pool.
package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mr1hm/pest-forecast/internal/config"
	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/repository"
	"github.com/mr1hm/pest-forecast/internal/worker"
)

// Recorder stores an observation and invalidates affected forecasts.
type Recorder interface {
	RecordObservation(ctx context.Context, o models.Observation, source string) (models.Observation, error)
}

// Store reports whether an observation id was already ingested.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type FailureMetrics interface {
	IngestionFailed(source string)
}

type job struct {
	source      string
	observation models.Observation
}

type Manager struct {
	cfg      *config.Config
	store    Store
	recorder Recorder
	metrics  FailureMetrics
	client   *http.Client
	pool     *worker.Pool[job]
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewManager(cfg *config.Config, store Store, recorder Recorder, metrics FailureMetrics) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		recorder: recorder,
		metrics:  metrics,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: slog.With("component", "ingestion"),
	}
}

func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, j job) error {
		o := j.observation

		exists, err := m.store.Exists(ctx, o.ID)
		if err != nil {
			m.log.Error("error checking existence", "id", o.ID, "error", err)
			return err
		}
		if exists {
			return nil
		}

		if _, err := m.recorder.RecordObservation(ctx, o, j.source); err != nil {
			// another worker took the same id from this batch
			if errors.Is(err, repository.ErrDuplicate) {
				return nil
			}
			m.log.Error("error recording observation", "id", o.ID, "error", err)
			return err
		}

		m.log.Info("added observation", "id", o.ID, "pest_type", o.PestType, "source", j.source)
		return nil
	}

	m.pool = worker.NewPool(m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.OnError(func(j job, err error) {
		if m.metrics != nil {
			m.metrics.IngestionFailed(j.source)
		}
	})
	m.pool.Start(ctx)

	if m.cfg.Ingestion.ScoutingEnabled && m.cfg.Ingestion.ScoutingURL != "" {
		m.wg.Add(1)
		go m.runPoller(ctx, sourceScouting, m.cfg.Ingestion.ScoutingURL, m.cfg.Ingestion.ScoutingPollInterval)
	}
}

// Submit queues an observation for recording; it blocks while the queue is
// full.
func (m *Manager) Submit(ctx context.Context, source string, o models.Observation) error {
	return m.pool.Submit(ctx, job{source: source, observation: o})
}

func (m *Manager) runPoller(ctx context.Context, source, url string, interval time.Duration) {
	defer m.wg.Done()
	m.log.Info("starting poller", "source", source, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx, source, url)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("poller shutting down", "source", source)
			return
		case <-ticker.C:
			m.poll(ctx, source, url)
		}
	}
}

func (m *Manager) poll(ctx context.Context, source, url string) {
	m.log.Debug("polling", "source", source)

	var (
		observations []models.Observation
		err          error
	)

	switch source {
	case sourceScouting:
		observations, err = m.pollScouting(ctx, url)
	}
	if err != nil {
		if m.metrics != nil {
			m.metrics.IngestionFailed(source)
		}
		m.log.Error("poll failed", "source", source, "error", err)
		return
	}

	for _, o := range observations {
		if err := m.Submit(ctx, source, o); err != nil {
			return
		}
	}

	m.log.Debug("poll complete", "source", source, "count", len(observations))
}

// Stop waits for pollers to exit, then drains the pool. Cancel the context
// passed to Start first.
func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
	m.log.Info("ingestion manager stopped")
}
