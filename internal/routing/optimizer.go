// Package routing turns intervention areas into drone spraying routes under
// payload, range and fleet-size limits.
package routing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mr1hm/pest-forecast/internal/geo"
	"github.com/mr1hm/pest-forecast/internal/models"
)

const (
	ReasonExceedsCapacity   = "exceeds_capacity"
	ReasonOutOfRange        = "out_of_range"
	ReasonCapacityExhausted = "capacity_exhausted"
	ReasonRangeExhausted    = "range_exhausted"
)

// Area is one intervention area as seen by the optimizer.
type Area struct {
	ID        int
	FieldID   string
	Latitude  float64
	Longitude float64
	Priority  float64
	Hectares  float64
}

func AreasFromPriorities(p []models.InterventionPriority) []Area {
	out := make([]Area, len(p))
	for i, a := range p {
		out[i] = Area{
			ID:        a.AreaID,
			FieldID:   a.FieldID,
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
			Priority:  a.PriorityScore,
			Hectares:  a.AreaHectares,
		}
	}
	return out
}

type Options struct {
	MaxDrones        int
	CapacityHectares float64
	RangeKm          float64
}

func (o Options) Validate() error {
	var errs []error
	if o.MaxDrones < 1 {
		errs = append(errs, fmt.Errorf("max drones must be >= 1, got %d", o.MaxDrones))
	}
	if !(o.CapacityHectares > 0) {
		errs = append(errs, fmt.Errorf("drone capacity must be > 0, got %v", o.CapacityHectares))
	}
	if !(o.RangeKm > 0) {
		errs = append(errs, fmt.Errorf("drone range must be > 0, got %v", o.RangeKm))
	}
	return errors.Join(errs...)
}

// CostModel prices a plan for the cost-benefit summary.
type CostModel struct {
	CostPerKm         float64
	CostPerHectare    float64
	BenefitPerHectare float64
}

type Optimizer struct {
	cost CostModel
}

func NewOptimizer(cost CostModel) *Optimizer {
	return &Optimizer{cost: cost}
}

type drone struct {
	stops []Area
	load  float64
}

// OptimizeSprayRoutes ranks areas by priority (then hectares, then input
// order), hands them out round-robin to the first drone that can take them
// within payload and range, and orders each drone's stops nearest-neighbour
// from base. Areas no drone can take are listed as unserved.
func (o *Optimizer) OptimizeSprayRoutes(areas []Area, base models.Coordinates, opts Options) (models.RoutePlan, error) {
	if err := opts.Validate(); err != nil {
		return models.RoutePlan{}, err
	}

	plan := models.RoutePlan{
		Routes:   []models.Route{},
		Unserved: []models.UnservedArea{},
	}
	if len(areas) == 0 {
		plan.Summary = models.RouteSummary{
			NoActionNeeded: true,
			Message:        "no intervention areas: no action needed",
		}
		return plan, nil
	}

	ranked := make([]Area, len(areas))
	copy(ranked, areas)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Hectares > ranked[j].Hectares
	})

	fleet := make([]drone, opts.MaxDrones)
	cursor := 0
	for _, a := range ranked {
		if a.Hectares > opts.CapacityHectares {
			plan.Unserved = append(plan.Unserved, models.UnservedArea{AreaID: a.ID, Reason: ReasonExceedsCapacity})
			continue
		}
		if 2*geo.Distance(base.Latitude, base.Longitude, a.Latitude, a.Longitude) > opts.RangeKm {
			plan.Unserved = append(plan.Unserved, models.UnservedArea{AreaID: a.ID, Reason: ReasonOutOfRange})
			continue
		}

		placed, capacityLeft := false, false
		for k := 0; k < len(fleet); k++ {
			d := (cursor + k) % len(fleet)
			if fleet[d].load+a.Hectares > opts.CapacityHectares {
				continue
			}
			capacityLeft = true
			candidate := append(append([]Area{}, fleet[d].stops...), a)
			if _, length := sequence(base, candidate); length > opts.RangeKm+1e-9 {
				continue
			}
			fleet[d].stops = candidate
			fleet[d].load += a.Hectares
			cursor = (d + 1) % len(fleet)
			placed = true
			break
		}
		if !placed {
			reason := ReasonCapacityExhausted
			if capacityLeft {
				reason = ReasonRangeExhausted
			}
			plan.Unserved = append(plan.Unserved, models.UnservedArea{AreaID: a.ID, Reason: reason})
		}
	}

	var benefit float64
	for i, d := range fleet {
		if len(d.stops) == 0 {
			continue
		}
		ordered, total := sequence(base, d.stops)
		route := models.Route{
			DroneID:         fmt.Sprintf("drone-%d", i+1),
			Stops:           make([]models.RouteStop, len(ordered)),
			TotalDistanceKm: total,
			TotalPayload:    d.load,
		}
		prev := base
		for j, a := range ordered {
			route.Stops[j] = models.RouteStop{
				AreaID:    a.ID,
				FieldID:   a.FieldID,
				Latitude:  a.Latitude,
				Longitude: a.Longitude,
				LegKm:     geo.Distance(prev.Latitude, prev.Longitude, a.Latitude, a.Longitude),
			}
			prev = models.Coordinates{Latitude: a.Latitude, Longitude: a.Longitude}
			benefit += a.Priority * a.Hectares * o.cost.BenefitPerHectare
		}
		plan.Routes = append(plan.Routes, route)
	}

	plan.Summary = o.summarize(plan, len(areas), benefit)
	return plan, nil
}

func (o *Optimizer) summarize(plan models.RoutePlan, total int, benefit float64) models.RouteSummary {
	s := models.RouteSummary{
		TotalAreas:      total,
		UnservedAreas:   len(plan.Unserved),
		DronesUsed:      len(plan.Routes),
		ExpectedBenefit: benefit,
	}
	for _, r := range plan.Routes {
		s.ServedAreas += len(r.Stops)
		s.TotalDistanceKm += r.TotalDistanceKm
		s.TreatedHectares += r.TotalPayload
	}
	s.EstimatedCost = s.TotalDistanceKm*o.cost.CostPerKm + s.TreatedHectares*o.cost.CostPerHectare
	if s.EstimatedCost > 0 {
		s.BenefitCostRatio = s.ExpectedBenefit / s.EstimatedCost
	}
	s.Message = fmt.Sprintf("%d of %d areas scheduled across %d drones", s.ServedAreas, total, s.DronesUsed)
	if s.UnservedAreas > 0 {
		s.Message += fmt.Sprintf("; %d areas could not be served", s.UnservedAreas)
	}
	return s
}

// sequence orders stops nearest-neighbour from base (earlier stops win ties)
// and returns the closed tour length including the return leg.
func sequence(base models.Coordinates, stops []Area) ([]Area, float64) {
	ordered := make([]Area, 0, len(stops))
	visited := make([]bool, len(stops))
	cur := base
	var total float64

	for range stops {
		best, bestDist := -1, 0.0
		for i, s := range stops {
			if visited[i] {
				continue
			}
			d := geo.Distance(cur.Latitude, cur.Longitude, s.Latitude, s.Longitude)
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		visited[best] = true
		ordered = append(ordered, stops[best])
		total += bestDist
		cur = models.Coordinates{Latitude: stops[best].Latitude, Longitude: stops[best].Longitude}
	}
	total += geo.Distance(cur.Latitude, cur.Longitude, base.Latitude, base.Longitude)
	return ordered, total
}
