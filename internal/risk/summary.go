package risk

import (
	"gonum.org/v1/gonum/floats"

	"github.com/mr1hm/pest-forecast/internal/models"
)

// HorizonScores is the per-horizon input to Summarize.
type HorizonScores struct {
	Label         string
	Cells         []models.RiskCell
	HighRiskAreas int
}

type Summary struct {
	OverallRisk       models.RiskCategory
	HighRiskAreaCount int
	PeakRiskTime      string
	Recommendations   []string
}

var recommendations = map[models.RiskCategory][]string{
	models.RiskLow: {
		"Continue routine scouting on the regular schedule",
		"No treatment required at this time",
	},
	models.RiskMedium: {
		"Increase scouting frequency in flagged areas",
		"Prepare treatment materials and check drone availability",
		"Re-run the forecast after the next weather update",
	},
	models.RiskHigh: {
		"Schedule targeted drone treatment for high-risk areas within 24 hours",
		"Prioritize fields in the order of the intervention plan",
		"Verify infestation levels on the ground before spraying borderline areas",
	},
	models.RiskCritical: {
		"Begin immediate drone treatment of critical areas",
		"Deploy all available drones and extend coverage to adjacent fields",
		"Notify neighbouring growers of the expected spread",
		"Re-assess within 24 hours after treatment",
	},
}

// Recommendations looks up the fixed advice for a category.
func Recommendations(c models.RiskCategory) []string {
	recs, ok := recommendations[c]
	if !ok {
		return []string{}
	}
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}

// Summarize aggregates horizons: overall risk is the maximum category seen,
// the high-risk count is the largest per-horizon count and the peak time is
// the horizon with the highest mean score (earliest wins ties).
func Summarize(horizons []HorizonScores) Summary {
	s := Summary{OverallRisk: models.RiskLow}
	bestMean := -1.0

	for _, h := range horizons {
		if h.HighRiskAreas > s.HighRiskAreaCount {
			s.HighRiskAreaCount = h.HighRiskAreas
		}
		if len(h.Cells) == 0 {
			continue
		}

		scores := make([]float64, len(h.Cells))
		for i, c := range h.Cells {
			scores[i] = c.Score
			if c.Category.Rank() > s.OverallRisk.Rank() {
				s.OverallRisk = c.Category
			}
		}
		mean := floats.Sum(scores) / float64(len(scores))
		if mean > bestMean {
			bestMean = mean
			s.PeakRiskTime = h.Label
		}
	}
	if s.PeakRiskTime == "" && len(horizons) > 0 {
		s.PeakRiskTime = horizons[0].Label
	}

	s.Recommendations = Recommendations(s.OverallRisk)
	return s
}
