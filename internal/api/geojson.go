package api

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mr1hm/pest-forecast/internal/models"
)

// toGeoJSON renders one horizon of a forecast: every risk cell as a point
// and every drone route as a line string that starts and ends at base.
func toGeoJSON(r *models.ForecastResult, horizon string) (*geojson.FeatureCollection, error) {
	hf, ok := r.Forecasts[horizon]
	if !ok || hf == nil {
		return nil, fmt.Errorf("horizon %q not in forecast", horizon)
	}

	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(hf.RiskGrid)+len(hf.Routes.Routes)),
	}

	for _, cell := range hf.RiskGrid {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{cell.Longitude, cell.Latitude}),
			Properties: map[string]any{
				"kind":                "risk_cell",
				"horizon":             horizon,
				"predicted_intensity": cell.Intensity,
				"risk_score":          cell.Score,
				"risk_category":       string(cell.Category),
			},
		})
	}

	base := []float64{r.Request.CenterLon, r.Request.CenterLat}
	for _, route := range hf.Routes.Routes {
		flat := make([]float64, 0, 2*(len(route.Stops)+2))
		flat = append(flat, base...)
		areaIDs := make([]int, 0, len(route.Stops))
		for _, s := range route.Stops {
			flat = append(flat, s.Longitude, s.Latitude)
			areaIDs = append(areaIDs, s.AreaID)
		}
		flat = append(flat, base...)

		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewLineStringFlat(geom.XY, flat),
			Properties: map[string]any{
				"kind":              "drone_route",
				"horizon":           horizon,
				"drone_id":          route.DroneID,
				"area_ids":          areaIDs,
				"total_distance_km": route.TotalDistanceKm,
				"total_payload":     route.TotalPayload,
			},
		})
	}

	b := r.Bounds
	fc.BBox = geom.NewBounds(geom.XY).Set(b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	return fc, nil
}
