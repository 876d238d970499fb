package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/pest-forecast/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already recorded")
)

type Filter struct {
	Limit    int
	Offset   int
	Since    *time.Time
	PestType string
	FieldID  string
	Bounds   *models.Bounds // inclusive
}

// matches applies every filter except paging.
func (f Filter) matches(o *models.Observation) bool {
	if f.PestType != "" && o.PestType != f.PestType {
		return false
	}
	if f.FieldID != "" && o.FieldID != f.FieldID {
		return false
	}
	if f.Since != nil && o.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Bounds != nil && !f.Bounds.Contains(o.Latitude, o.Longitude) {
		return false
	}
	return true
}

// ObservationRepository is append-only: observations are never updated once
// recorded. Lists come back in insertion order.
type ObservationRepository interface {
	Add(ctx context.Context, o *models.Observation) error
	GetByID(ctx context.Context, id string) (*models.Observation, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListObservations(ctx context.Context, opts Filter) ([]models.Observation, error)
	Count(ctx context.Context) (int, error)
}

type AlertRepository interface {
	AddAlert(ctx context.Context, a *models.RiskAlert) error
	ListAlerts(ctx context.Context, opts Filter) ([]models.RiskAlert, error)
}
