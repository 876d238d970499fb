package risk

import (
	"math"
	"time"
)

const (
	northernPeakDay = 196 // mid-July
	seasonalFloor   = 0.2
)

// SeasonalFactor peaks in local midsummer and bottoms out at seasonalFloor in
// midwinter. The southern hemisphere is shifted by half a year.
func SeasonalFactor(t time.Time, lat float64) float64 {
	peak := northernPeakDay
	if lat < 0 {
		peak = (northernPeakDay + 182) % 365
	}
	phase := 2 * math.Pi * float64(t.YearDay()-peak) / 365
	wave := 0.5 + 0.5*math.Cos(phase)
	return seasonalFloor + (1-seasonalFloor)*wave
}
