package weather

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/pest-forecast/internal/models"
)

var testBounds = models.Bounds{MinLat: 36.6, MinLon: -119.6, MaxLat: 36.9, MaxLon: -119.2}

func TestSamplePoints_CenterAndCorners(t *testing.T) {
	pts := SamplePoints(testBounds)
	require.Len(t, pts, 5)
	assert.Equal(t, testBounds.Center(), pts[0])
	for _, p := range pts {
		assert.True(t, testBounds.Contains(p.Latitude, p.Longitude))
	}
}

func TestSuitabilityAt_ExactAndBlended(t *testing.T) {
	p, _ := LookupProfile("aphids")
	r := &Report{Readings: []Reading{
		{Latitude: 36.6, Longitude: -119.6, TemperatureC: 22, HumidityPct: 70},
		{Latitude: 36.9, Longitude: -119.2, TemperatureC: 0, HumidityPct: 10, WindSpeedKmh: 100},
	}}
	hot := p.Suitability(22, 70, 0)
	cold := p.Suitability(0, 10, 100)

	assert.InDelta(t, hot, r.SuitabilityAt(p, 36.6, -119.6), 1e-9)
	mid := r.SuitabilityAt(p, 36.75, -119.4)
	assert.Greater(t, mid, cold)
	assert.Less(t, mid, hot)

	var empty *Report
	assert.Equal(t, 0.0, empty.SuitabilityAt(p, 0, 0))
}

func TestMeanWindKmh_BlowsAwayFromSource(t *testing.T) {
	// westerly wind moves air east
	r := &Report{Readings: []Reading{{WindSpeedKmh: 10, WindDirectionDeg: 270}}}
	east, north := r.MeanWindKmh()
	assert.InDelta(t, 10, east, 1e-9)
	assert.InDelta(t, 0, north, 1e-9)

	r = &Report{Readings: []Reading{{WindSpeedKmh: 10, WindDirectionDeg: 0}, {WindSpeedKmh: math.NaN()}}}
	_, north = r.MeanWindKmh()
	assert.InDelta(t, -10, north, 1e-9)
}

func TestStatic_Current(t *testing.T) {
	r, err := DemoConditions.Current(context.Background(), testBounds)
	require.NoError(t, err)
	assert.Len(t, r.Readings, 5)
	assert.False(t, r.Stale)
	assert.Equal(t, "static", r.Source)
}
