package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
)

var base = models.Coordinates{Latitude: 40.0, Longitude: -74.0}

func fieldAreas() []Area {
	return []Area{
		{ID: 1, FieldID: "field_1", Latitude: 40.0, Longitude: -74.0, Priority: 0.8, Hectares: 10},
		{ID: 2, FieldID: "field_2", Latitude: 40.01, Longitude: -74.01, Priority: 0.6, Hectares: 15},
		{ID: 3, FieldID: "field_3", Latitude: 40.02, Longitude: -74.02, Priority: 0.9, Hectares: 8},
	}
}

func stopIDs(r models.Route) []int {
	ids := make([]int, len(r.Stops))
	for i, s := range r.Stops {
		ids[i] = s.AreaID
	}
	return ids
}

func TestOptimize_SingleDroneVisitsAllNearestFirst(t *testing.T) {
	o := NewOptimizer(CostModel{})
	plan, err := o.OptimizeSprayRoutes(fieldAreas(), base, Options{MaxDrones: 1, CapacityHectares: 50, RangeKm: 20})
	require.NoError(t, err)

	require.Len(t, plan.Routes, 1)
	r := plan.Routes[0]
	assert.Equal(t, "drone-1", r.DroneID)
	assert.Equal(t, []int{1, 2, 3}, stopIDs(r))
	assert.Greater(t, r.TotalDistanceKm, 0.0)
	assert.InDelta(t, 33.0, r.TotalPayload, 1e-9)
	assert.Empty(t, plan.Unserved)

	var legs float64
	for _, s := range r.Stops {
		legs += s.LegKm
	}
	last := r.Stops[len(r.Stops)-1]
	legs += geo.Distance(last.Latitude, last.Longitude, base.Latitude, base.Longitude)
	assert.InDelta(t, legs, r.TotalDistanceKm, 1e-9)
}

func TestOptimize_ZeroAreas(t *testing.T) {
	plan, err := NewOptimizer(CostModel{}).OptimizeSprayRoutes(nil, base, Options{MaxDrones: 3, CapacityHectares: 50, RangeKm: 20})
	require.NoError(t, err)

	assert.NotNil(t, plan.Routes)
	assert.Empty(t, plan.Routes)
	assert.NotNil(t, plan.Unserved)
	assert.True(t, plan.Summary.NoActionNeeded)
	assert.NotEmpty(t, plan.Summary.Message)
}

func TestOptimize_FanOut(t *testing.T) {
	plan, err := NewOptimizer(CostModel{}).OptimizeSprayRoutes(fieldAreas(), base, Options{MaxDrones: 5, CapacityHectares: 50, RangeKm: 20})
	require.NoError(t, err)

	require.Len(t, plan.Routes, 3)
	for _, r := range plan.Routes {
		assert.Len(t, r.Stops, 1)
	}
	// ranked by priority: 3, 1, 2
	assert.Equal(t, []int{3}, stopIDs(plan.Routes[0]))
	assert.Equal(t, []int{1}, stopIDs(plan.Routes[1]))
	assert.Equal(t, []int{2}, stopIDs(plan.Routes[2]))
	assert.Equal(t, 3, plan.Summary.DronesUsed)
}

func TestOptimize_SingleArea(t *testing.T) {
	areas := []Area{{ID: 7, Latitude: 40.02, Longitude: -74.02, Priority: 0.5, Hectares: 4}}
	plan, err := NewOptimizer(CostModel{}).OptimizeSprayRoutes(areas, base, Options{MaxDrones: 1, CapacityHectares: 10, RangeKm: 20})
	require.NoError(t, err)

	require.Len(t, plan.Routes, 1)
	assert.Equal(t, []int{7}, stopIDs(plan.Routes[0]))
	d := geo.Distance(base.Latitude, base.Longitude, 40.02, -74.02)
	assert.InDelta(t, 2*d, plan.Routes[0].TotalDistanceKm, 1e-9)
}

func TestOptimize_CapacityUnserved(t *testing.T) {
	plan, err := NewOptimizer(CostModel{}).OptimizeSprayRoutes(fieldAreas(), base, Options{MaxDrones: 1, CapacityHectares: 12, RangeKm: 20})
	require.NoError(t, err)

	require.Len(t, plan.Routes, 1)
	assert.Equal(t, []int{3}, stopIDs(plan.Routes[0]))
	assert.Equal(t, []models.UnservedArea{
		{AreaID: 1, Reason: ReasonCapacityExhausted},
		{AreaID: 2, Reason: ReasonExceedsCapacity},
	}, plan.Unserved)
	assert.Equal(t, 1, plan.Summary.ServedAreas)
	assert.Equal(t, 2, plan.Summary.UnservedAreas)
}

func TestOptimize_RangeUnserved(t *testing.T) {
	areas := []Area{
		{ID: 1, Latitude: 40.0, Longitude: -73.97, Priority: 0.9, Hectares: 1},
		{ID: 2, Latitude: 40.0, Longitude: -74.03, Priority: 0.8, Hectares: 1},
		{ID: 3, Latitude: 41.0, Longitude: -74.0, Priority: 0.7, Hectares: 1},
	}
	plan, err := NewOptimizer(CostModel{}).OptimizeSprayRoutes(areas, base, Options{MaxDrones: 1, CapacityHectares: 100, RangeKm: 6})
	require.NoError(t, err)

	require.Len(t, plan.Routes, 1)
	assert.Equal(t, []int{1}, stopIDs(plan.Routes[0]))
	assert.LessOrEqual(t, plan.Routes[0].TotalDistanceKm, 6.0)
	assert.Equal(t, []models.UnservedArea{
		{AreaID: 2, Reason: ReasonRangeExhausted},
		{AreaID: 3, Reason: ReasonOutOfRange},
	}, plan.Unserved)
}

func TestOptimize_DeferredToNextDrone(t *testing.T) {
	areas := []Area{
		{ID: 1, Latitude: 40.0, Longitude: -73.97, Priority: 0.9, Hectares: 1},
		{ID: 2, Latitude: 40.0, Longitude: -74.01, Priority: 0.8, Hectares: 1},
		{ID: 3, Latitude: 40.0, Longitude: -74.02, Priority: 0.7, Hectares: 1},
	}
	plan, err := NewOptimizer(CostModel{}).OptimizeSprayRoutes(areas, base, Options{MaxDrones: 2, CapacityHectares: 100, RangeKm: 6})
	require.NoError(t, err)

	// area 3 is next for drone-1 but would push it past range
	require.Len(t, plan.Routes, 2)
	assert.Equal(t, []int{1}, stopIDs(plan.Routes[0]))
	assert.Equal(t, []int{2, 3}, stopIDs(plan.Routes[1]))
	assert.Empty(t, plan.Unserved)
}

func TestOptimize_TieBreaksFollowInputOrder(t *testing.T) {
	areas := []Area{
		{ID: 1, Latitude: 40.0, Longitude: -73.97, Priority: 0.5, Hectares: 2},
		{ID: 2, Latitude: 40.0, Longitude: -74.03, Priority: 0.5, Hectares: 2},
	}
	o := NewOptimizer(CostModel{})
	opts := Options{MaxDrones: 1, CapacityHectares: 10, RangeKm: 50}

	first, err := o.OptimizeSprayRoutes(areas, base, opts)
	require.NoError(t, err)
	require.Len(t, first.Routes, 1)
	assert.Equal(t, []int{1, 2}, stopIDs(first.Routes[0]))

	again, err := o.OptimizeSprayRoutes(areas, base, opts)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestOptimize_CostBenefit(t *testing.T) {
	o := NewOptimizer(CostModel{CostPerKm: 2, CostPerHectare: 10, BenefitPerHectare: 100})
	plan, err := o.OptimizeSprayRoutes(fieldAreas(), base, Options{MaxDrones: 1, CapacityHectares: 50, RangeKm: 20})
	require.NoError(t, err)

	s := plan.Summary
	assert.Equal(t, 3, s.TotalAreas)
	assert.Equal(t, 3, s.ServedAreas)
	assert.InDelta(t, 33.0, s.TreatedHectares, 1e-9)
	assert.InDelta(t, s.TotalDistanceKm*2+33*10, s.EstimatedCost, 1e-9)
	assert.InDelta(t, (0.8*10+0.6*15+0.9*8)*100, s.ExpectedBenefit, 1e-9)
	assert.InDelta(t, s.ExpectedBenefit/s.EstimatedCost, s.BenefitCostRatio, 1e-9)
	assert.False(t, s.NoActionNeeded)
}

func TestOptions_Validate(t *testing.T) {
	o := NewOptimizer(CostModel{})
	for name, opts := range map[string]Options{
		"no drones":     {MaxDrones: 0, CapacityHectares: 1, RangeKm: 1},
		"zero capacity": {MaxDrones: 1, CapacityHectares: 0, RangeKm: 1},
		"zero range":    {MaxDrones: 1, CapacityHectares: 1, RangeKm: 0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := o.OptimizeSprayRoutes(fieldAreas(), base, opts)
			assert.Error(t, err)
		})
	}
}
