package risk

import (
	"fmt"
	"math"

	"github.com/mr1hm/pest-forecast/internal/models"
)

const (
	MediumThreshold   = 0.3
	HighThreshold     = 0.6
	CriticalThreshold = 0.8
)

// Weights apportion the five risk factors. They must be non-negative and sum to 1.
type Weights struct {
	Weather           float64 `json:"weather"`
	PestCount         float64 `json:"pest_count"`
	CropVulnerability float64 `json:"crop_vulnerability"`
	Historical        float64 `json:"historical"`
	Seasonal          float64 `json:"seasonal"`
}

func DefaultWeights() Weights {
	return Weights{
		Weather:           0.30,
		PestCount:         0.30,
		CropVulnerability: 0.20,
		Historical:        0.10,
		Seasonal:          0.10,
	}
}

func (w Weights) Validate() error {
	parts := []float64{w.Weather, w.PestCount, w.CropVulnerability, w.Historical, w.Seasonal}
	var sum float64
	for _, p := range parts {
		if p < 0 || math.IsNaN(p) {
			return fmt.Errorf("risk weights must be non-negative: %+v", w)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("risk weights must sum to 1, got %.6f", sum)
	}
	return nil
}

// Factors are the per-location inputs, each expected in [0,1].
type Factors struct {
	WeatherSuitability float64 `json:"weather_suitability"`
	PestCount          float64 `json:"current_pest_count"`
	CropVulnerability  float64 `json:"crop_vulnerability"`
	HistoricalRisk     float64 `json:"historical_risk"`
	SeasonalFactor     float64 `json:"seasonal_factor"`
}

type Scorer struct {
	weights Weights
}

func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

func (s *Scorer) Weights() Weights {
	return s.weights
}

// CalculateRiskScore is the convex combination of the clamped factors.
func (s *Scorer) CalculateRiskScore(f Factors) float64 {
	w := s.weights
	score := w.Weather*Clamp01(f.WeatherSuitability) +
		w.PestCount*Clamp01(f.PestCount) +
		w.CropVulnerability*Clamp01(f.CropVulnerability) +
		w.Historical*Clamp01(f.HistoricalRisk) +
		w.Seasonal*Clamp01(f.SeasonalFactor)
	return Clamp01(score)
}

// CategorizeRisk bands are inclusive on their lower edge.
func CategorizeRisk(score float64) models.RiskCategory {
	switch {
	case score < MediumThreshold:
		return models.RiskLow
	case score < HighThreshold:
		return models.RiskMedium
	case score < CriticalThreshold:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// NormalizeCount maps a raw pest count or intensity onto [0,1], saturating at
// the given level.
func NormalizeCount(value, saturation float64) float64 {
	if saturation <= 0 || math.IsNaN(value) || value <= 0 {
		return 0
	}
	return Clamp01(value / saturation)
}

func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
