package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mr1hm/pest-forecast/internal/models"
)

const sourceScouting = "scouting"

// scoutingResponse is a GeoJSON FeatureCollection of field scouting reports.
type scoutingResponse struct {
	Features []scoutingFeature `json:"features"`
}

type scoutingFeature struct {
	ID         string             `json:"id"`
	Properties scoutingProperties `json:"properties"`
	Geometry   scoutingGeometry   `json:"geometry"`
}

type scoutingProperties struct {
	PestType string  `json:"pest_type"`
	Count    int     `json:"count"`
	Severity float64 `json:"severity"`
	FieldID  string  `json:"field_id"`
	Observer string  `json:"observer"`
	Time     int64   `json:"time"` // unix millis
}

type scoutingGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

func (m *Manager) pollScouting(ctx context.Context, url string) ([]models.Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data scoutingResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	return decodeScouting(data), nil
}

// decodeScouting skips features without a point geometry or an id.
func decodeScouting(data scoutingResponse) []models.Observation {
	observations := make([]models.Observation, 0, len(data.Features))
	for _, f := range data.Features {
		if f.ID == "" || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		if f.Geometry.Type != "" && f.Geometry.Type != "Point" {
			continue
		}
		o := models.Observation{
			ID:        "scouting_" + f.ID,
			PestType:  f.Properties.PestType,
			Count:     f.Properties.Count,
			Severity:  f.Properties.Severity,
			FieldID:   f.Properties.FieldID,
			Observer:  f.Properties.Observer,
			Longitude: f.Geometry.Coordinates[0],
			Latitude:  f.Geometry.Coordinates[1],
		}
		if f.Properties.Time > 0 {
			o.Timestamp = time.UnixMilli(f.Properties.Time).UTC()
		}
		observations = append(observations, o)
	}
	return observations
}
