package models

import "time"

// RiskAlert is published when a forecast reaches high or critical overall risk.
type RiskAlert struct {
	ID                string       `json:"id"`
	ForecastID        string       `json:"forecast_id"`
	PestType          string       `json:"pest_type"`
	Center            Coordinates  `json:"center"`
	RadiusKm          float64      `json:"radius_km"`
	Category          RiskCategory `json:"category"`
	PeakRiskTime      string       `json:"peak_risk_time"`
	HighRiskAreaCount int          `json:"high_risk_area_count"`
	CreatedAt         time.Time    `json:"created_at"`
}
