package weather

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSuitability_InUnitRange(t *testing.T) {
	p, ok := LookupProfile("aphids")
	require.True(t, ok)

	readings := []Reading{
		{TemperatureC: 20, HumidityPct: 60, WindSpeedKmh: 5},
		{TemperatureC: 25, HumidityPct: 70, WindSpeedKmh: 10},
		{TemperatureC: 30, HumidityPct: 80, WindSpeedKmh: 15},
		{TemperatureC: 35, HumidityPct: 50, WindSpeedKmh: 25},
		{TemperatureC: math.NaN(), HumidityPct: math.Inf(1), WindSpeedKmh: -3},
		{TemperatureC: -40, HumidityPct: 0, WindSpeedKmh: 200},
	}
	got := CalculateSuitability(readings, p)
	require.Len(t, got, len(readings))
	for i, s := range got {
		assert.GreaterOrEqual(t, s, 0.0, "reading %d", i)
		assert.LessOrEqual(t, s, 1.0, "reading %d", i)
	}
	assert.Equal(t, 0.0, got[4])
	assert.Equal(t, 0.0, got[5])
}

func TestSuitability_OptimalIsOne(t *testing.T) {
	for _, name := range PestTypes() {
		p, _ := LookupProfile(name)
		mid := p.Suitability((p.TempOptLow+p.TempOptHigh)/2, (p.HumidityOptLow+p.HumidityOptHigh)/2, 0)
		assert.InDelta(t, 1.0, mid, 1e-9, name)
	}
}

func TestSuitability_DeclinesAwayFromOptimum(t *testing.T) {
	p, _ := LookupProfile("aphids")
	best := p.Suitability(22, 70, 5)
	cold := p.Suitability(10, 70, 5)
	windy := p.Suitability(22, 70, 30)
	assert.Greater(t, best, cold)
	assert.Greater(t, best, windy)
}

func TestPestTypes_Sorted(t *testing.T) {
	names := PestTypes()
	assert.Contains(t, names, "aphids")
	assert.IsIncreasing(t, names)

	_, ok := LookupProfile("dragons")
	assert.False(t, ok)
}
