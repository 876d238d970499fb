package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_KnownLatitudeDelta(t *testing.T) {
	d := Distance(40.0, -74.0, 40.1, -74.0)
	assert.InDelta(t, 11.1, d, 1.0)
}

func TestDistance_SamePointIsZero(t *testing.T) {
	assert.Zero(t, Distance(36.7783, -119.4179, 36.7783, -119.4179))
}

func TestDistance_Symmetric(t *testing.T) {
	a := Distance(36.7, -119.4, 36.9, -119.1)
	b := Distance(36.9, -119.1, 36.7, -119.4)
	assert.InDelta(t, a, b, 1e-9)
}

func TestCalculateBounds_CenterStrictlyInterior(t *testing.T) {
	centers := [][2]float64{{40.0, -74.0}, {36.7783, -119.4179}, {-33.9, 18.4}, {0, 0}, {64.1, -21.9}}
	radii := []float64{0.001, 0.5, 10, 15, 250}

	for _, c := range centers {
		for _, r := range radii {
			b, err := CalculateBounds(c[0], c[1], r)
			require.NoError(t, err)
			assert.Less(t, b.MinLat, c[0])
			assert.Less(t, c[0], b.MaxLat)
			assert.Less(t, b.MinLon, c[1])
			assert.Less(t, c[1], b.MaxLon)
		}
	}
}

func TestCalculateBounds_Deltas(t *testing.T) {
	b, err := CalculateBounds(40.0, -74.0, 10)
	require.NoError(t, err)

	assert.InDelta(t, 10/111.0, 40.0-b.MinLat, 1e-12)
	wantLon := 10 / (111.0 * math.Cos(40.0*math.Pi/180))
	assert.InDelta(t, wantLon, b.MaxLon-(-74.0), 1e-12)
}

func TestCalculateBounds_RejectsNonPositiveRadius(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN()} {
		_, err := CalculateBounds(40, -74, r)
		assert.True(t, errors.Is(err, ErrInvalidRadius), "radius %v", r)
	}
}

func TestCalculateBounds_RejectsBadCenter(t *testing.T) {
	_, err := CalculateBounds(91, 0, 5)
	assert.Error(t, err)
}

func TestCalculateBounds_RejectsWrappingAreas(t *testing.T) {
	for _, c := range [][2]float64{{89.95, 10}, {-89.95, 10}, {10, 179.95}, {10, -179.95}} {
		_, err := CalculateBounds(c[0], c[1], 15)
		assert.ErrorIs(t, err, ErrOutOfRange, "center %v", c)
	}

	b, err := CalculateBounds(89, 0, 15)
	require.NoError(t, err)
	assert.LessOrEqual(t, b.MaxLat, 90.0)
}

func TestSpanKm_MatchesRadius(t *testing.T) {
	b, err := CalculateBounds(36.7783, -119.4179, 15)
	require.NoError(t, err)
	latKm, lonKm := SpanKm(b)
	assert.InDelta(t, 30, latKm, 1e-9)
	assert.InDelta(t, 30, lonKm, 0.05)
}
