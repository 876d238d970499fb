package weather

import (
	"math"
	"sort"
)

// PestProfile describes the conditions a pest thrives in. Temperature is in
// °C, humidity in percent and wind in km/h.
type PestProfile struct {
	Name string `json:"name"`

	TempMin     float64 `json:"temp_min"`
	TempOptLow  float64 `json:"temp_opt_low"`
	TempOptHigh float64 `json:"temp_opt_high"`
	TempMax     float64 `json:"temp_max"`

	HumidityMin     float64 `json:"humidity_min"`
	HumidityOptLow  float64 `json:"humidity_opt_low"`
	HumidityOptHigh float64 `json:"humidity_opt_high"`
	HumidityMax     float64 `json:"humidity_max"`

	// WindCalm is the speed up to which wind has no effect; suitability
	// falls to zero at WindMax.
	WindCalm float64 `json:"wind_calm"`
	WindMax  float64 `json:"wind_max"`

	CropVulnerability float64 `json:"crop_vulnerability"`
}

var profiles = map[string]PestProfile{
	"aphids": {
		Name:    "aphids",
		TempMin: 5, TempOptLow: 18, TempOptHigh: 27, TempMax: 35,
		HumidityMin: 30, HumidityOptLow: 60, HumidityOptHigh: 80, HumidityMax: 98,
		WindCalm: 10, WindMax: 40,
		CropVulnerability: 0.7,
	},
	"whiteflies": {
		Name:    "whiteflies",
		TempMin: 12, TempOptLow: 24, TempOptHigh: 32, TempMax: 40,
		HumidityMin: 30, HumidityOptLow: 55, HumidityOptHigh: 80, HumidityMax: 95,
		WindCalm: 8, WindMax: 35,
		CropVulnerability: 0.6,
	},
	"spider_mites": {
		Name:    "spider_mites",
		TempMin: 12, TempOptLow: 27, TempOptHigh: 35, TempMax: 42,
		HumidityMin: 10, HumidityOptLow: 25, HumidityOptHigh: 50, HumidityMax: 80,
		WindCalm: 12, WindMax: 45,
		CropVulnerability: 0.5,
	},
	"thrips": {
		Name:    "thrips",
		TempMin: 10, TempOptLow: 22, TempOptHigh: 30, TempMax: 38,
		HumidityMin: 20, HumidityOptLow: 40, HumidityOptHigh: 70, HumidityMax: 90,
		WindCalm: 10, WindMax: 40,
		CropVulnerability: 0.55,
	},
	"armyworm": {
		Name:    "armyworm",
		TempMin: 12, TempOptLow: 25, TempOptHigh: 32, TempMax: 38,
		HumidityMin: 40, HumidityOptLow: 65, HumidityOptHigh: 90, HumidityMax: 100,
		WindCalm: 15, WindMax: 50,
		CropVulnerability: 0.8,
	},
}

func LookupProfile(pestType string) (PestProfile, bool) {
	p, ok := profiles[pestType]
	return p, ok
}

// PestTypes lists the supported pests in name order.
func PestTypes() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suitability rates one set of conditions for the pest in [0, 1].
// Non-finite inputs score 0 for the affected factor.
func (p PestProfile) Suitability(tempC, humidityPct, windKmh float64) float64 {
	temp := trapezoid(tempC, p.TempMin, p.TempOptLow, p.TempOptHigh, p.TempMax)
	hum := trapezoid(humidityPct, p.HumidityMin, p.HumidityOptLow, p.HumidityOptHigh, p.HumidityMax)
	wind := windFactor(windKmh, p.WindCalm, p.WindMax)
	return clamp01(0.5*temp + 0.3*hum + 0.2*wind)
}

// CalculateSuitability rates each reading against the pest profile.
func CalculateSuitability(readings []Reading, p PestProfile) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = p.Suitability(r.TemperatureC, r.HumidityPct, r.WindSpeedKmh)
	}
	return out
}

func trapezoid(v, floor, lo, hi, ceil float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0
	case v <= floor || v >= ceil:
		return 0
	case v < lo:
		return (v - floor) / (lo - floor)
	case v > hi:
		return (ceil - v) / (ceil - hi)
	default:
		return 1
	}
}

func windFactor(v, calm, limit float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0) || v < 0:
		return 0
	case v <= calm:
		return 1
	case v >= limit:
		return 0
	default:
		return (limit - v) / (limit - calm)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
