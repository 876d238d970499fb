package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type Observation struct {
	ID        string    `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Latitude  float64   `json:"lat" db:"latitude"`
	Longitude float64   `json:"lon" db:"longitude"`
	PestType  string    `json:"pest_type" db:"pest_type"`
	Count     int       `json:"count" db:"count"`
	Severity  float64   `json:"severity" db:"severity"` // 0..1
	FieldID   string    `json:"field_id" db:"field_id"`
	Observer  string    `json:"observer" db:"observer"`
}

// Weight is the raw influence an observation carries into the density grid.
func (o *Observation) Weight() float64 {
	return float64(o.Count) * o.Severity
}

func (o *Observation) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  o.Latitude,
		Longitude: o.Longitude,
	}
}

func (o *Observation) Validate() error {
	var errs []error
	if err := ValidateCoordinates(o.Latitude, o.Longitude); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(o.PestType) == "" {
		errs = append(errs, errors.New("pest_type is required"))
	}
	if o.Count < 0 {
		errs = append(errs, fmt.Errorf("count must be >= 0, got %d", o.Count))
	}
	if math.IsNaN(o.Severity) || o.Severity < 0 || o.Severity > 1 {
		errs = append(errs, fmt.Errorf("severity must be within [0,1], got %v", o.Severity))
	}
	return errors.Join(errs...)
}

type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]: %v", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: %v", lon)
	}
	return nil
}

type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains is inclusive on every edge.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func (b Bounds) Center() Coordinates {
	return Coordinates{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLon + b.MaxLon) / 2,
	}
}

func (b Bounds) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}
