// Package spatial discretizes a forecast region into fixed-resolution cells
// and estimates per-cell pest density from point observations.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
)

var ErrInvalidResolution = errors.New("grid resolution must be > 0")

// MaxCells bounds a single grid so an oversized radius/resolution pair fails
// fast instead of allocating unbounded memory.
const MaxCells = 250_000

type Cell struct {
	Row       int     `json:"-"`
	Col       int     `json:"-"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Density   float64 `json:"density"`
}

// Grid is a dense row-major cell array: lat ascending, then lon ascending.
type Grid struct {
	Bounds       models.Bounds
	ResolutionKm float64
	Rows         int
	Cols         int
	LatStep      float64 // degrees
	LonStep      float64 // degrees
	Cells        []Cell
}

// Build lays out empty cells covering bounds at roughly resolutionKm.
func Build(bounds models.Bounds, resolutionKm float64) (*Grid, error) {
	if !(resolutionKm > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidResolution, resolutionKm)
	}
	if !(bounds.MaxLat > bounds.MinLat) || !(bounds.MaxLon > bounds.MinLon) {
		return nil, fmt.Errorf("degenerate bounds: %s", bounds)
	}

	latKm, lonKm := geo.SpanKm(bounds)
	rows := cellsAlong(latKm, resolutionKm)
	cols := cellsAlong(lonKm, resolutionKm)
	if rows*cols > MaxCells {
		return nil, fmt.Errorf("grid of %dx%d cells exceeds limit of %d", rows, cols, MaxCells)
	}

	g := &Grid{
		Bounds:       bounds,
		ResolutionKm: resolutionKm,
		Rows:         rows,
		Cols:         cols,
		LatStep:      (bounds.MaxLat - bounds.MinLat) / float64(rows),
		LonStep:      (bounds.MaxLon - bounds.MinLon) / float64(cols),
		Cells:        make([]Cell, 0, rows*cols),
	}
	for r := 0; r < rows; r++ {
		lat := bounds.MinLat + (float64(r)+0.5)*g.LatStep
		for c := 0; c < cols; c++ {
			g.Cells = append(g.Cells, Cell{
				Row:       r,
				Col:       c,
				Latitude:  lat,
				Longitude: bounds.MinLon + (float64(c)+0.5)*g.LonStep,
			})
		}
	}
	return g, nil
}

// cellsAlong tolerates float noise so a 30 km span at 1 km yields 30 cells.
func cellsAlong(spanKm, resolutionKm float64) int {
	return max(1, int(math.Ceil(spanKm/resolutionKm-1e-6)))
}

func (g *Grid) Index(row, col int) int {
	return row*g.Cols + col
}

func (g *Grid) At(row, col int) *Cell {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return nil
	}
	return &g.Cells[g.Index(row, col)]
}

// Locate returns the row/col of the cell containing the point.
func (g *Grid) Locate(lat, lon float64) (row, col int, ok bool) {
	if !g.Bounds.Contains(lat, lon) {
		return 0, 0, false
	}
	row = min(int((lat-g.Bounds.MinLat)/g.LatStep), g.Rows-1)
	col = min(int((lon-g.Bounds.MinLon)/g.LonStep), g.Cols-1)
	return row, col, true
}

// CellAreaHectares is the mean cell area; 1 km² = 100 ha.
func (g *Grid) CellAreaHectares() float64 {
	latKm, lonKm := geo.SpanKm(g.Bounds)
	return latKm / float64(g.Rows) * lonKm / float64(g.Cols) * 100
}

// CellSizeKm is the shorter side of a cell.
func (g *Grid) CellSizeKm() float64 {
	latKm, lonKm := geo.SpanKm(g.Bounds)
	return math.Min(latKm/float64(g.Rows), lonKm/float64(g.Cols))
}

func (g *Grid) Densities() []float64 {
	out := make([]float64, len(g.Cells))
	for i := range g.Cells {
		out[i] = g.Cells[i].Density
	}
	return out
}

func (g *Grid) MaxDensity() float64 {
	if len(g.Cells) == 0 {
		return 0
	}
	return floats.Max(g.Densities())
}

func (g *Grid) TotalDensity() float64 {
	return floats.Sum(g.Densities())
}

// Clone copies the geometry with zeroed density.
func (g *Grid) Clone() *Grid {
	cp := *g
	cp.Cells = make([]Cell, len(g.Cells))
	for i, c := range g.Cells {
		c.Density = 0
		cp.Cells[i] = c
	}
	return &cp
}
