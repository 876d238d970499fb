package forecast

import (
	"math"
	"sort"
	"strings"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/routing"
	"github.com/mr1hm/pest-forecast/internal/weather"
)

// plan is a validated request with everything derived from it once.
type plan struct {
	req     models.ForecastRequest
	profile weather.PestProfile
	bounds  models.Bounds
	routing routing.Options
	key     string
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// resolve validates req and fills optional drone fields from config defaults.
// Horizons come back sorted with duplicates removed.
func (e *Engine) resolve(req models.ForecastRequest) (*plan, error) {
	if !finite(req.CenterLat, req.CenterLon, req.RadiusKm, req.DroneCapacity, req.DroneRangeKm) {
		return nil, inputError("request contains non-finite numbers")
	}
	if err := models.ValidateCoordinates(req.CenterLat, req.CenterLon); err != nil {
		return nil, inputError("%v", err)
	}
	if req.RadiusKm <= 0 {
		return nil, inputError("radius_km must be positive, got %v", req.RadiusKm)
	}
	if req.RadiusKm > e.cfg.MaxRadiusKm {
		return nil, inputError("radius_km %v exceeds maximum of %v", req.RadiusKm, e.cfg.MaxRadiusKm)
	}

	req.PestType = strings.ToLower(strings.TrimSpace(req.PestType))
	profile, ok := weather.LookupProfile(req.PestType)
	if !ok {
		return nil, inputError("unknown pest_type %q (supported: %s)", req.PestType, strings.Join(weather.PestTypes(), ", "))
	}

	if len(req.ForecastHours) == 0 {
		return nil, inputError("forecast_hours must not be empty")
	}
	seen := make(map[int]bool, len(req.ForecastHours))
	hours := make([]int, 0, len(req.ForecastHours))
	for _, h := range req.ForecastHours {
		if h < 0 || h > e.cfg.MaxHorizonHours {
			return nil, inputError("forecast hour %d outside [0,%d]", h, e.cfg.MaxHorizonHours)
		}
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}
	sort.Ints(hours)
	req.ForecastHours = hours

	switch {
	case req.MaxDrones < 0:
		return nil, inputError("max_drones must not be negative")
	case req.MaxDrones == 0:
		req.MaxDrones = e.drones.MaxDrones
	}
	switch {
	case req.DroneCapacity < 0:
		return nil, inputError("drone_capacity must not be negative")
	case req.DroneCapacity == 0:
		req.DroneCapacity = e.drones.CapacityHectares
	}
	switch {
	case req.DroneRangeKm < 0:
		return nil, inputError("drone_range_km must not be negative")
	case req.DroneRangeKm == 0:
		req.DroneRangeKm = e.drones.RangeKm
	}

	bounds, err := geo.CalculateBounds(req.CenterLat, req.CenterLon, req.RadiusKm)
	if err != nil {
		return nil, inputError("%v", err)
	}

	return &plan{
		req:     req,
		profile: profile,
		bounds:  bounds,
		routing: routing.Options{
			MaxDrones:        req.MaxDrones,
			CapacityHectares: req.DroneCapacity,
			RangeKm:          req.DroneRangeKm,
		},
		key: cacheKey(req),
	}, nil
}
