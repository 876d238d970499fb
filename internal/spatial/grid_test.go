package spatial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
)

func testBounds(t *testing.T) models.Bounds {
	t.Helper()
	b, err := geo.CalculateBounds(36.7783, -119.4179, 15)
	require.NoError(t, err)
	return b
}

func TestBuild_RowMajorLatThenLon(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)

	assert.Equal(t, 30, g.Rows)
	assert.Equal(t, 30, g.Cols)
	require.Len(t, g.Cells, g.Rows*g.Cols)

	for i := 1; i < len(g.Cells); i++ {
		prev, cur := g.Cells[i-1], g.Cells[i]
		if cur.Row == prev.Row {
			assert.Greater(t, cur.Longitude, prev.Longitude)
			assert.Equal(t, prev.Latitude, cur.Latitude)
		} else {
			assert.Equal(t, prev.Row+1, cur.Row)
			assert.Greater(t, cur.Latitude, prev.Latitude)
		}
	}
}

func TestBuild_CellsInsideBounds(t *testing.T) {
	b := testBounds(t)
	g, err := Build(b, 0.7)
	require.NoError(t, err)
	for _, c := range g.Cells {
		assert.True(t, b.Contains(c.Latitude, c.Longitude))
	}
}

func TestBuild_InvalidInput(t *testing.T) {
	_, err := Build(testBounds(t), 0)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = Build(models.Bounds{MinLat: 1, MaxLat: 1, MinLon: 0, MaxLon: 1}, 1)
	assert.Error(t, err)

	_, err = Build(testBounds(t), 0.001)
	assert.Error(t, err, "oversized grid must be rejected")
}

func TestLocate(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)

	for _, c := range []Cell{g.Cells[0], g.Cells[len(g.Cells)-1], *g.At(12, 17)} {
		r, col, ok := g.Locate(c.Latitude, c.Longitude)
		require.True(t, ok)
		assert.Equal(t, c.Row, r)
		assert.Equal(t, c.Col, col)
	}

	r, col, ok := g.Locate(g.Bounds.MaxLat, g.Bounds.MaxLon)
	require.True(t, ok)
	assert.Equal(t, g.Rows-1, r)
	assert.Equal(t, g.Cols-1, col)

	_, _, ok = g.Locate(0, 0)
	assert.False(t, ok)
}

func TestCellAreaHectares(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 100, g.CellAreaHectares(), 1)
}

func TestComputeDensity_ZeroObservations(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)

	require.NoError(t, ComputeDensity(g, nil, 2.0))
	for _, c := range g.Cells {
		assert.Zero(t, c.Density)
	}
	assert.Zero(t, g.MaxDensity())
}

func TestComputeDensity_SinglePointAtCellCenter(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)
	center := g.At(15, 15)

	obs := []models.Observation{{
		Timestamp: time.Now(),
		Latitude:  center.Latitude,
		Longitude: center.Longitude,
		PestType:  "aphids",
		Count:     10,
		Severity:  0.5,
	}}
	require.NoError(t, ComputeDensity(g, obs, 2.0))

	assert.InDelta(t, 5.0, g.At(15, 15).Density, 1e-9, "full weight at distance 0")
	assert.Greater(t, g.At(15, 16).Density, 0.0)
	assert.Less(t, g.At(15, 16).Density, 5.0)
	assert.Zero(t, g.At(15, 20).Density, "beyond influence radius")
	assert.Zero(t, g.At(0, 0).Density)
}

func TestComputeDensity_Superposes(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)
	c := g.At(10, 10)
	one := models.Observation{Latitude: c.Latitude, Longitude: c.Longitude, PestType: "aphids", Count: 4, Severity: 1}

	require.NoError(t, ComputeDensity(g, []models.Observation{one, one}, 2.0))
	assert.InDelta(t, 8.0, g.At(10, 10).Density, 1e-9)
}

func TestComputeDensity_InvalidRadius(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)
	assert.Error(t, ComputeDensity(g, nil, 0))
}

func TestKernel(t *testing.T) {
	assert.Equal(t, 1.0, Kernel(0, 2))
	assert.Zero(t, Kernel(2, 2))
	assert.Zero(t, Kernel(3, 2))
	assert.Greater(t, Kernel(0.5, 2), Kernel(1.5, 2))
}

func TestClone_ZeroesDensity(t *testing.T) {
	g, err := Build(testBounds(t), 1.0)
	require.NoError(t, err)
	g.Cells[3].Density = 7

	cp := g.Clone()
	assert.Zero(t, cp.Cells[3].Density)
	assert.Equal(t, 7.0, g.Cells[3].Density)
	assert.Equal(t, g.Rows, cp.Rows)
}
