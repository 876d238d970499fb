package diffusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/spatial"
)

func newModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	m, err := New(0.1, opts...)
	require.NoError(t, err)
	return m
}

func testGrid(t *testing.T) *spatial.Grid {
	t.Helper()
	b, err := geo.CalculateBounds(40.0, -74.0, 10)
	require.NoError(t, err)
	g, err := spatial.Build(b, 0.5)
	require.NoError(t, err)
	return g
}

func TestNew_RejectsNonPositiveRate(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(-0.1)
	assert.Error(t, err)
}

func TestCalculateSpread_Columns(t *testing.T) {
	m := newModel(t)
	points := []Source{{40.0, -74.0, 10}, {40.01, -74.01, 15}}

	ig, err := m.CalculateSpread(points, 24)
	require.NoError(t, err)

	cells := ig.Cells()
	require.NotEmpty(t, cells)
	nonZero := 0
	for _, c := range cells {
		assert.GreaterOrEqual(t, c.Intensity, 0.0)
		if c.Intensity > 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 1, "spread must reach neighbouring cells")
	assert.Equal(t, 24.0, ig.Hours)
}

func TestCalculateSpread_ZeroHoursIsPointLike(t *testing.T) {
	m := newModel(t)

	ig, err := m.CalculateSpread([]Source{{40.0, -74.0, 10}}, 0)
	require.NoError(t, err)

	nonZero := 0
	for _, c := range ig.Cells() {
		if c.Intensity > 0 {
			nonZero++
			assert.InDelta(t, 10.0, c.Intensity, 1e-9)
		}
	}
	assert.Equal(t, 1, nonZero)
	assert.InDelta(t, 10.0, ig.Grid.TotalDensity(), 1e-9)
}

func TestCalculateSpread_RequiresSources(t *testing.T) {
	_, err := newModel(t).CalculateSpread(nil, 24)
	assert.ErrorIs(t, err, ErrNoSources)

	_, err = newModel(t).CalculateSpread([]Source{{40, -74, 1}}, -1)
	assert.Error(t, err)
}

func TestProject_PeakAttenuatesOverTime(t *testing.T) {
	m := newModel(t)
	g := testGrid(t)
	c := g.At(g.Rows/2, g.Cols/2)
	src := []Source{{c.Latitude, c.Longitude, 20}}

	p24 := m.Project(g, src, 24).Grid.MaxDensity()
	p72 := m.Project(g, src, 72).Grid.MaxDensity()

	assert.LessOrEqual(t, p24, 20/(1+0.1*24)+1e-9)
	assert.Less(t, p72, p24)
	assert.Greater(t, p72, 0.0)
}

func TestProject_SpreadGrowsWithTime(t *testing.T) {
	m := newModel(t)
	g := testGrid(t)
	c := g.At(g.Rows/2, g.Cols/2)
	src := []Source{{c.Latitude, c.Longitude, 20}}

	count := func(hours float64) int {
		n := 0
		for _, cell := range m.Project(g, src, hours).Grid.Cells {
			if cell.Density > 1e-3 {
				n++
			}
		}
		return n
	}
	assert.Less(t, count(24), count(72))
}

func TestProject_Superposition(t *testing.T) {
	m := newModel(t)
	g := testGrid(t)
	a := Source{40.0, -74.0, 10}
	b := Source{40.03, -73.98, 6}

	both := m.Project(g, []Source{a, b}, 48).Grid
	onlyA := m.Project(g, []Source{a}, 48).Grid
	onlyB := m.Project(g, []Source{b}, 48).Grid

	for i := range both.Cells {
		assert.InDelta(t, onlyA.Cells[i].Density+onlyB.Cells[i].Density, both.Cells[i].Density, 1e-9)
	}
}

func TestProject_HorizonsAreIndependent(t *testing.T) {
	m := newModel(t)
	g := testGrid(t)
	src := []Source{{40.0, -74.0, 10}}

	direct := m.Project(g, src, 72).Grid.Densities()
	_ = m.Project(g, src, 24)
	_ = m.Project(g, src, 48)
	again := m.Project(g, src, 72).Grid.Densities()

	assert.Equal(t, direct, again)
	assert.Zero(t, g.TotalDensity(), "input grid must stay untouched")
}

func TestProject_DriftMovesMass(t *testing.T) {
	g := testGrid(t)
	c := g.At(g.Rows/2, g.Cols/2)
	src := []Source{{c.Latitude, c.Longitude, 10}}

	still := newModel(t).Project(g, src, 24).Grid
	drifting := newModel(t, WithDrift(0.1, 0)).Project(g, src, 24).Grid

	centroidLon := func(gr *spatial.Grid) float64 {
		var sum, w float64
		for _, cell := range gr.Cells {
			sum += cell.Longitude * cell.Density
			w += cell.Density
		}
		return sum / w
	}
	assert.Greater(t, centroidLon(drifting), centroidLon(still))
}

func TestSpreadRadiusAndPeak(t *testing.T) {
	m := newModel(t)
	assert.Zero(t, m.SpreadRadius(0))
	assert.InDelta(t, 2.1909, m.SpreadRadius(24), 1e-3)
	assert.Equal(t, 1.0, m.PeakFactor(0))
	assert.InDelta(t, 1/3.4, m.PeakFactor(24), 1e-12)
}
