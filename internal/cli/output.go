package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mr1hm/pest-forecast/internal/models"
)

func writeText(w io.Writer, r *models.ForecastResult) {
	req := r.Request
	fmt.Fprintf(w, "Forecast %s: %s around %.4f,%.4f (%g km)\n", r.ID, req.PestType, req.CenterLat, req.CenterLon, req.RadiusKm)

	if !r.Succeeded() {
		fmt.Fprintf(w, "Status: %s (%s)\n%s\n", r.Status, r.ErrorKind, r.Message)
		return
	}

	s := r.Summary
	fmt.Fprintf(w, "Overall risk: %s  peak: %s  high-risk areas: %d\n", strings.ToUpper(string(s.OverallRisk)), s.PeakRiskTime, s.HighRiskAreaCount)
	fmt.Fprintf(w, "Observations: %d  weather: %s\n", s.ObservationCount, s.WeatherStatus)
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}

	for _, label := range r.Horizons {
		hf := r.Forecasts[label]
		if hf == nil {
			continue
		}
		plan := hf.Routes.Summary
		fmt.Fprintf(w, "\n[%s] confidence %.2f  high-risk cells %d  treatment areas %d\n",
			label, hf.Confidence, len(hf.HighRiskAreas), len(hf.InterventionPriorities))

		if plan.NoActionNeeded {
			fmt.Fprintf(w, "  %s\n", plan.Message)
			continue
		}
		for _, route := range hf.Routes.Routes {
			ids := make([]string, len(route.Stops))
			for i, stop := range route.Stops {
				ids[i] = fmt.Sprintf("%d", stop.AreaID)
			}
			fmt.Fprintf(w, "  %s: base -> %s -> base  %.1f km  %.1f ha\n",
				route.DroneID, strings.Join(ids, " -> "), route.TotalDistanceKm, route.TotalPayload)
		}
		for _, u := range hf.Routes.Unserved {
			fmt.Fprintf(w, "  unserved area %d: %s\n", u.AreaID, u.Reason)
		}
		fmt.Fprintf(w, "  cost %.2f  benefit %.2f  ratio %.2f\n", plan.EstimatedCost, plan.ExpectedBenefit, plan.BenefitCostRatio)
	}

	if len(s.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range s.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
}
