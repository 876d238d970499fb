package models

import (
	"fmt"
	"time"
)

type ForecastStatus string

const (
	StatusSuccess ForecastStatus = "success"
	StatusFailure ForecastStatus = "failure"
)

type WeatherStatus string

const (
	WeatherFresh   WeatherStatus = "fresh"
	WeatherStale   WeatherStatus = "stale"
	WeatherMissing WeatherStatus = "missing"
)

// ForecastRequest carries the required front-end parameters. Drone fields are
// optional; zero values fall back to configured defaults.
type ForecastRequest struct {
	CenterLat     float64 `json:"center_lat"`
	CenterLon     float64 `json:"center_lon"`
	RadiusKm      float64 `json:"radius_km"`
	PestType      string  `json:"pest_type"`
	ForecastHours []int   `json:"forecast_hours"`

	MaxDrones     int     `json:"max_drones,omitempty"`
	DroneCapacity float64 `json:"drone_capacity,omitempty"` // hectares per sortie
	DroneRangeKm  float64 `json:"drone_range_km,omitempty"`
}

func HorizonLabel(hours int) string {
	return fmt.Sprintf("%dh", hours)
}

type RouteStop struct {
	AreaID    int     `json:"area_id"`
	FieldID   string  `json:"field_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	LegKm     float64 `json:"leg_km"`
}

type Route struct {
	DroneID         string      `json:"drone_id"`
	Stops           []RouteStop `json:"stops"`
	TotalDistanceKm float64     `json:"total_distance_km"`
	TotalPayload    float64     `json:"total_payload"` // hectares
}

type UnservedArea struct {
	AreaID int    `json:"area_id"`
	Reason string `json:"reason"`
}

type RouteSummary struct {
	TotalAreas       int     `json:"total_areas"`
	ServedAreas      int     `json:"served_areas"`
	UnservedAreas    int     `json:"unserved_areas"`
	DronesUsed       int     `json:"drones_used"`
	TotalDistanceKm  float64 `json:"total_distance_km"`
	TreatedHectares  float64 `json:"treated_hectares"`
	EstimatedCost    float64 `json:"estimated_cost"`
	ExpectedBenefit  float64 `json:"expected_benefit"`
	BenefitCostRatio float64 `json:"benefit_cost_ratio"`
	NoActionNeeded   bool    `json:"no_action_needed"`
	Message          string  `json:"message"`
}

type RoutePlan struct {
	Routes   []Route        `json:"routes"`
	Unserved []UnservedArea `json:"unserved"`
	Summary  RouteSummary   `json:"summary"`
}

type HorizonForecast struct {
	HorizonHours           int                    `json:"horizon_hours"`
	RiskGrid               []RiskCell             `json:"risk_grid"`
	HighRiskAreas          []RiskArea             `json:"high_risk_areas"`
	InterventionPriorities []InterventionPriority `json:"intervention_priorities"`
	Confidence             float64                `json:"confidence"`
	Routes                 RoutePlan              `json:"routes"`
}

type ForecastSummary struct {
	OverallRisk       RiskCategory  `json:"overall_risk"`
	HighRiskAreaCount int           `json:"high_risk_area_count"`
	PeakRiskTime      string        `json:"peak_risk_time"`
	Recommendations   []string      `json:"recommendations"`
	ObservationCount  int           `json:"observation_count"`
	WeatherStatus     WeatherStatus `json:"weather_status"`
}

// ForecastResult is shared read-only with callers and the cache. Consumers
// must not mutate it.
type ForecastResult struct {
	ID          string                      `json:"id"`
	Status      ForecastStatus              `json:"status"`
	ErrorKind   string                      `json:"error_kind,omitempty"`
	Message     string                      `json:"message,omitempty"`
	Warnings    []string                    `json:"warnings,omitempty"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Request     ForecastRequest             `json:"request"`
	Bounds      Bounds                      `json:"bounds"`
	Summary     ForecastSummary             `json:"summary"`
	Horizons    []string                    `json:"horizons"`
	Forecasts   map[string]*HorizonForecast `json:"forecasts"`
}

func (r *ForecastResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}
