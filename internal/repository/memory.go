package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/mr1hm/pest-forecast/internal/models"
)

// MemoryStore keeps observations and alerts for the life of the process.
type MemoryStore struct {
	mu           sync.RWMutex
	observations []models.Observation
	byID         map[string]int
	alerts       []models.RiskAlert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

func (m *MemoryStore) Add(_ context.Context, o *models.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[o.ID]; ok {
		return fmt.Errorf("observation %s: %w", o.ID, ErrDuplicate)
	}
	m.byID[o.ID] = len(m.observations)
	m.observations = append(m.observations, *o)
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*models.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("observation %s: %w", id, ErrNotFound)
	}
	o := m.observations[i]
	return &o, nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok, nil
}

// ListObservations returns a copy; later writes never show up in it.
func (m *MemoryStore) ListObservations(_ context.Context, opts Filter) ([]models.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Observation, 0)
	skipped := 0
	for i := range m.observations {
		o := &m.observations[i]
		if !opts.matches(o) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, *o)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observations), nil
}

func (m *MemoryStore) AddAlert(_ context.Context, a *models.RiskAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, *a)
	return nil
}

// ListAlerts honours PestType, Since and paging; newest first.
func (m *MemoryStore) ListAlerts(_ context.Context, opts Filter) ([]models.RiskAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RiskAlert, 0)
	skipped := 0
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if opts.PestType != "" && a.PestType != opts.PestType {
			continue
		}
		if opts.Since != nil && a.CreatedAt.Before(*opts.Since) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, a)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}
