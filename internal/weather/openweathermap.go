package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/pest-forecast/internal/models"
)

const DefaultOpenWeatherMapURL = "https://api.openweathermap.org/data/2.5/weather"

type owmResponse struct {
	Dt   int64 `json:"dt"` // unix seconds
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s with units=metric
		Deg   float64 `json:"deg"`
	} `json:"wind"`
}

// OpenWeatherMap queries the current weather endpoint once per sample point.
type OpenWeatherMap struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limit   int
	log     *slog.Logger
}

func NewOpenWeatherMap(baseURL, apiKey string, timeout time.Duration) *OpenWeatherMap {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherMapURL
	}
	return &OpenWeatherMap{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		limit:   3,
		log:     slog.With("component", "weather", "source", "openweathermap"),
	}
}

// Current fetches every sample point concurrently. Points that fail are
// skipped; the call only fails when no point succeeds.
func (o *OpenWeatherMap) Current(ctx context.Context, bounds models.Bounds) (*Report, error) {
	points := SamplePoints(bounds)
	readings := make([]*Reading, len(points))

	var (
		mu      sync.Mutex
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit)
	for i, p := range points {
		g.Go(func() error {
			r, err := o.fetch(gctx, p.Latitude, p.Longitude)
			if err != nil {
				o.log.Warn("sample point failed", "lat", p.Latitude, "lon", p.Longitude, "error", err)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			readings[i] = r
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Source: "openweathermap", FetchedAt: time.Now().UTC()}
	for _, r := range readings {
		if r != nil {
			report.Readings = append(report.Readings, *r)
		}
	}
	if len(report.Readings) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return report, nil
}

func (o *OpenWeatherMap) fetch(ctx context.Context, lat, lon float64) (*Reading, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("appid", o.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	observed := time.Now().UTC()
	if data.Dt > 0 {
		observed = time.Unix(data.Dt, 0).UTC()
	}
	return &Reading{
		Latitude:         lat,
		Longitude:        lon,
		TemperatureC:     data.Main.Temp,
		HumidityPct:      data.Main.Humidity,
		WindSpeedKmh:     data.Wind.Speed * 3.6,
		WindDirectionDeg: data.Wind.Deg,
		ObservedAt:       observed,
	}, nil
}
