// Package weather collects current conditions around a forecast area and
// rates how favourable they are for a pest.
package weather

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
)

var ErrUnavailable = errors.New("weather data unavailable")

type Reading struct {
	Latitude         float64   `json:"lat"`
	Longitude        float64   `json:"lon"`
	TemperatureC     float64   `json:"temperature_c"`
	HumidityPct      float64   `json:"humidity_pct"`
	WindSpeedKmh     float64   `json:"wind_speed_kmh"`
	WindDirectionDeg float64   `json:"wind_direction_deg"` // direction the wind blows from
	ObservedAt       time.Time `json:"observed_at"`
}

type Report struct {
	Readings  []Reading `json:"readings"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale,omitempty"` // served from the fallback cache
}

// Provider returns current conditions for an area. Implementations return an
// error wrapping ErrUnavailable when nothing usable could be obtained.
type Provider interface {
	Current(ctx context.Context, bounds models.Bounds) (*Report, error)
}

// SamplePoints returns the center followed by the four corners.
func SamplePoints(b models.Bounds) []models.Coordinates {
	center := b.Center()
	return []models.Coordinates{
		center,
		{Latitude: b.MinLat, Longitude: b.MinLon},
		{Latitude: b.MinLat, Longitude: b.MaxLon},
		{Latitude: b.MaxLat, Longitude: b.MinLon},
		{Latitude: b.MaxLat, Longitude: b.MaxLon},
	}
}

// SuitabilityAt interpolates per-reading suitability to a point by inverse
// distance weighting (power 2).
func (r *Report) SuitabilityAt(p PestProfile, lat, lon float64) float64 {
	if r == nil || len(r.Readings) == 0 {
		return 0
	}
	var num, den float64
	for _, rd := range r.Readings {
		s := p.Suitability(rd.TemperatureC, rd.HumidityPct, rd.WindSpeedKmh)
		d := geo.Distance(lat, lon, rd.Latitude, rd.Longitude)
		if d < 1e-6 {
			return s
		}
		w := 1 / (d * d)
		num += w * s
		den += w
	}
	return num / den
}

// MeanWindKmh averages wind as a vector and returns the velocity the air is
// moving toward, split into east and north components.
func (r *Report) MeanWindKmh() (east, north float64) {
	if r == nil || len(r.Readings) == 0 {
		return 0, 0
	}
	var n float64
	for _, rd := range r.Readings {
		if math.IsNaN(rd.WindSpeedKmh) || math.IsNaN(rd.WindDirectionDeg) {
			continue
		}
		rad := rd.WindDirectionDeg * math.Pi / 180
		east -= rd.WindSpeedKmh * math.Sin(rad)
		north -= rd.WindSpeedKmh * math.Cos(rad)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return east / n, north / n
}
