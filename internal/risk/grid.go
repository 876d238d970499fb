package risk

import (
	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/spatial"
)

// GridInputs carries the non-density factors for scoring a whole grid.
// Suitability is per cell (same order as the grid); a nil slice falls back to
// DefaultSuitability for every cell.
type GridInputs struct {
	Suitability        []float64
	DefaultSuitability float64
	CropVulnerability  float64
	HistoricalRisk     float64
	SeasonalFactor     float64
	CountSaturation    float64
}

// ScoreGrid scores every cell of an intensity grid.
func (s *Scorer) ScoreGrid(g *spatial.Grid, in GridInputs) []models.RiskCell {
	cells := make([]models.RiskCell, len(g.Cells))
	for i, c := range g.Cells {
		suit := in.DefaultSuitability
		if i < len(in.Suitability) {
			suit = in.Suitability[i]
		}
		score := s.CalculateRiskScore(Factors{
			WeatherSuitability: suit,
			PestCount:          NormalizeCount(c.Density, in.CountSaturation),
			CropVulnerability:  in.CropVulnerability,
			HistoricalRisk:     in.HistoricalRisk,
			SeasonalFactor:     in.SeasonalFactor,
		})
		cells[i] = models.RiskCell{
			Row:       c.Row,
			Col:       c.Col,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Intensity: c.Density,
			Score:     score,
			Category:  CategorizeRisk(score),
		}
	}
	return cells
}

// HighRiskAreas returns cells at or above minCategory, in grid order.
func HighRiskAreas(cells []models.RiskCell, minCategory models.RiskCategory) []models.RiskArea {
	areas := make([]models.RiskArea, 0)
	for _, c := range cells {
		if c.Category.AtLeast(minCategory) {
			areas = append(areas, models.RiskArea{
				Latitude:  c.Latitude,
				Longitude: c.Longitude,
				Score:     c.Score,
				Category:  c.Category,
			})
		}
	}
	return areas
}
