package weather

import (
	"context"
	"time"

	"github.com/mr1hm/pest-forecast/internal/models"
)

// Static reports the same conditions at every sample point. Used in demo mode
// and when no API key is configured.
type Static struct {
	TemperatureC     float64
	HumidityPct      float64
	WindSpeedKmh     float64
	WindDirectionDeg float64
}

// DemoConditions are warm, humid and calm.
var DemoConditions = Static{TemperatureC: 24, HumidityPct: 70, WindSpeedKmh: 8, WindDirectionDeg: 270}

func (s Static) Current(_ context.Context, bounds models.Bounds) (*Report, error) {
	now := time.Now().UTC()
	points := SamplePoints(bounds)
	r := &Report{Source: "static", FetchedAt: now, Readings: make([]Reading, len(points))}
	for i, p := range points {
		r.Readings[i] = Reading{
			Latitude:         p.Latitude,
			Longitude:        p.Longitude,
			TemperatureC:     s.TemperatureC,
			HumidityPct:      s.HumidityPct,
			WindSpeedKmh:     s.WindSpeedKmh,
			WindDirectionDeg: s.WindDirectionDeg,
			ObservedAt:       now,
		}
	}
	return r, nil
}
