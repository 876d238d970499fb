// Package diffusion propagates pest density forward in time with a radial
// Gaussian spread whose peak attenuates as the affected area grows.
package diffusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/spatial"
)

var ErrNoSources = errors.New("at least one source point is required")

// Source is an initial point of infestation.
type Source struct {
	Latitude  float64
	Longitude float64
	Count     float64
}

type IntensityCell struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Intensity float64 `json:"predicted_intensity"`
}

type IntensityGrid struct {
	Hours float64
	Grid  *spatial.Grid // Density holds predicted intensity
}

// Cells flattens the grid into lat/lon/predicted_intensity rows.
func (ig *IntensityGrid) Cells() []IntensityCell {
	out := make([]IntensityCell, len(ig.Grid.Cells))
	for i, c := range ig.Grid.Cells {
		out[i] = IntensityCell{Latitude: c.Latitude, Longitude: c.Longitude, Intensity: c.Density}
	}
	return out
}

type Model struct {
	rate         float64 // km²/h
	resolutionKm float64
	cutoff       float64 // in spread radii
	driftEast    float64 // km/h
	driftNorth   float64 // km/h
}

type Option func(*Model)

// WithDrift advects every source by a constant velocity (e.g. downwind).
func WithDrift(eastKmH, northKmH float64) Option {
	return func(m *Model) {
		m.driftEast = eastKmH
		m.driftNorth = northKmH
	}
}

// WithCutoff sets how many spread radii a source reaches before truncation.
func WithCutoff(sigmas float64) Option {
	return func(m *Model) {
		if sigmas > 0 {
			m.cutoff = sigmas
		}
	}
}

// WithResolution sets the cell size used by CalculateSpread's own grid.
func WithResolution(km float64) Option {
	return func(m *Model) {
		if km > 0 {
			m.resolutionKm = km
		}
	}
}

func New(rate float64, opts ...Option) (*Model, error) {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("diffusion rate must be > 0, got %v", rate)
	}
	m := &Model{
		rate:         rate,
		resolutionKm: 0.5,
		cutoff:       3,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Model) Rate() float64 {
	return m.rate
}

// SpreadRadius is sqrt(2·rate·t) in km.
func (m *Model) SpreadRadius(hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return math.Sqrt(2 * m.rate * hours)
}

// PeakFactor is the attenuation applied to a source's count after t hours.
func (m *Model) PeakFactor(hours float64) float64 {
	if hours <= 0 {
		return 1
	}
	return 1 / (1 + m.rate*hours)
}

// CalculateSpread evaluates the model on a grid padded around the sources.
func (m *Model) CalculateSpread(points []Source, hours float64) (*IntensityGrid, error) {
	if len(points) == 0 {
		return nil, ErrNoSources
	}
	if hours < 0 {
		return nil, fmt.Errorf("time must be >= 0, got %v", hours)
	}

	b := m.extent(points, hours)
	g, err := spatial.Build(b, m.resolutionKm)
	if err != nil {
		return nil, fmt.Errorf("error building spread grid: %w", err)
	}
	return m.Project(g, points, hours), nil
}

// Project evaluates the spread of points after hours on the geometry of g.
// g itself is not modified. Each call is independent of any earlier horizon.
func (m *Model) Project(g *spatial.Grid, points []Source, hours float64) *IntensityGrid {
	out := g.Clone()
	if hours < 0 {
		hours = 0
	}

	sigma := m.SpreadRadius(hours)
	peak := m.PeakFactor(hours)
	pointLike := sigma < out.CellSizeKm()/2

	for _, p := range points {
		if p.Count <= 0 {
			continue
		}
		lat, lon := geo.Offset(p.Latitude, p.Longitude, m.driftEast*hours, m.driftNorth*hours)

		if pointLike {
			if r, c, ok := out.Locate(lat, lon); ok {
				out.At(r, c).Density += p.Count * peak
			}
			continue
		}
		m.spread(out, lat, lon, p.Count*peak, sigma)
	}

	return &IntensityGrid{Hours: hours, Grid: out}
}

func (m *Model) spread(g *spatial.Grid, lat, lon, peak, sigma float64) {
	reach := m.cutoff * sigma
	minLat, minLon := geo.Offset(lat, lon, -reach, -reach)
	maxLat, maxLon := geo.Offset(lat, lon, reach, reach)

	r0 := max(0, int(math.Floor((minLat-g.Bounds.MinLat)/g.LatStep)))
	r1 := min(g.Rows-1, int(math.Floor((maxLat-g.Bounds.MinLat)/g.LatStep)))
	c0 := max(0, int(math.Floor((minLon-g.Bounds.MinLon)/g.LonStep)))
	c1 := min(g.Cols-1, int(math.Floor((maxLon-g.Bounds.MinLon)/g.LonStep)))

	twoSigmaSq := 2 * sigma * sigma
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			cell := g.At(r, c)
			d := geo.Distance(cell.Latitude, cell.Longitude, lat, lon)
			if d > reach {
				continue
			}
			cell.Density += peak * math.Exp(-d*d/twoSigmaSq)
		}
	}
}

func (m *Model) extent(points []Source, hours float64) models.Bounds {
	b := models.Bounds{MinLat: 90, MinLon: 180, MaxLat: -90, MaxLon: -180}
	for _, p := range points {
		lat, lon := geo.Offset(p.Latitude, p.Longitude, m.driftEast*hours, m.driftNorth*hours)
		for _, pt := range [][2]float64{{p.Latitude, p.Longitude}, {lat, lon}} {
			b.MinLat = math.Min(b.MinLat, pt[0])
			b.MaxLat = math.Max(b.MaxLat, pt[0])
			b.MinLon = math.Min(b.MinLon, pt[1])
			b.MaxLon = math.Max(b.MaxLon, pt[1])
		}
	}

	pad := math.Max(m.cutoff*m.SpreadRadius(hours), m.resolutionKm)
	b.MinLat, b.MinLon = geo.Offset(b.MinLat, b.MinLon, -pad, -pad)
	b.MaxLat, b.MaxLon = geo.Offset(b.MaxLat, b.MaxLon, pad, pad)
	return b
}

// SourcesFromGrid turns every cell with positive density into a source.
func SourcesFromGrid(g *spatial.Grid) []Source {
	out := make([]Source, 0)
	for _, c := range g.Cells {
		if c.Density > 0 {
			out = append(out, Source{Latitude: c.Latitude, Longitude: c.Longitude, Count: c.Density})
		}
	}
	return out
}
