package spatial

import (
	"fmt"
	"math"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
)

// Kernel is the quartic (biweight) decay: 1 at d=0, smooth, 0 from d>=radius.
func Kernel(distanceKm, radiusKm float64) float64 {
	if radiusKm <= 0 || distanceKm >= radiusKm {
		return 0
	}
	u := distanceKm / radiusKm
	k := 1 - u*u
	return k * k
}

// ComputeDensity fills every cell with the kernel-weighted sum of
// count*severity over observations within influenceRadiusKm of its center.
// Existing densities are overwritten.
func ComputeDensity(g *Grid, observations []models.Observation, influenceRadiusKm float64) error {
	if !(influenceRadiusKm > 0) {
		return fmt.Errorf("influence radius must be > 0, got %v", influenceRadiusKm)
	}

	for i := range g.Cells {
		g.Cells[i].Density = 0
	}
	if len(observations) == 0 {
		return nil
	}

	// Restrict the cell scan per observation to a window around it.
	latWin := int(math.Ceil(influenceRadiusKm/geo.KmPerDegree/g.LatStep)) + 1
	for _, obs := range observations {
		w := obs.Weight()
		if w <= 0 {
			continue
		}
		lonWin := int(math.Ceil(lonDegrees(obs.Latitude, influenceRadiusKm)/g.LonStep)) + 1
		r0 := int(math.Floor((obs.Latitude - g.Bounds.MinLat) / g.LatStep))
		c0 := int(math.Floor((obs.Longitude - g.Bounds.MinLon) / g.LonStep))

		for r := max(0, r0-latWin); r <= min(g.Rows-1, r0+latWin); r++ {
			for c := max(0, c0-lonWin); c <= min(g.Cols-1, c0+lonWin); c++ {
				cell := &g.Cells[g.Index(r, c)]
				d := geo.Distance(cell.Latitude, cell.Longitude, obs.Latitude, obs.Longitude)
				if k := Kernel(d, influenceRadiusKm); k > 0 {
					cell.Density += w * k
				}
			}
		}
	}
	return nil
}

func lonDegrees(lat, km float64) float64 {
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	return km / (geo.KmPerDegree * cosLat)
}
