package models

type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskMedium   RiskCategory = "medium"
	RiskHigh     RiskCategory = "high"
	RiskCritical RiskCategory = "critical"
)

// Rank orders categories from low (0) to critical (3). Unknown values rank -1.
func (c RiskCategory) Rank() int {
	switch c {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

func (c RiskCategory) AtLeast(other RiskCategory) bool {
	return c.Rank() >= other.Rank()
}

func ParseRiskCategory(s string) (RiskCategory, bool) {
	c := RiskCategory(s)
	if c.Rank() < 0 {
		return "", false
	}
	return c, true
}

type RiskCell struct {
	Row       int          `json:"-"`
	Col       int          `json:"-"`
	Latitude  float64      `json:"lat"`
	Longitude float64      `json:"lon"`
	Intensity float64      `json:"predicted_intensity"`
	Score     float64      `json:"risk_score"`
	Category  RiskCategory `json:"risk_category"`
}

type RiskArea struct {
	Latitude  float64      `json:"lat"`
	Longitude float64      `json:"lon"`
	Score     float64      `json:"risk_score"`
	Category  RiskCategory `json:"risk_category"`
}

type InterventionPriority struct {
	RiskArea
	AreaID        int     `json:"area_id"`
	FieldID       string  `json:"field_id"`
	PriorityScore float64 `json:"priority_score"`
	AreaHectares  float64 `json:"area_hectares"`
	CellCount     int     `json:"cell_count"`
}
