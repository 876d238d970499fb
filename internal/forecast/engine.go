// Package forecast runs the pest forecast pipeline: density, diffusion, risk
// scoring and drone routing for each requested horizon, with a result cache
// that new observations invalidate.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/pest-forecast/internal/config"
	"github.com/mr1hm/pest-forecast/internal/diffusion"
	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/repository"
	"github.com/mr1hm/pest-forecast/internal/risk"
	"github.com/mr1hm/pest-forecast/internal/routing"
	"github.com/mr1hm/pest-forecast/internal/spatial"
	"github.com/mr1hm/pest-forecast/internal/weather"
)

// Metrics is the subset of the Prometheus collectors the engine reports to.
type Metrics interface {
	ObserveForecast(pestType, status string, d time.Duration, cached bool)
	CacheInvalidated(n int)
	WeatherLookup(status string)
	ObservationRecorded(pestType, source string)
	AlertPublished(category string)
}

// Notifier receives risk alerts, e.g. the gRPC stream broadcaster.
type Notifier interface {
	Broadcast(a *models.RiskAlert)
}

type noopMetrics struct{}

func (noopMetrics) ObserveForecast(string, string, time.Duration, bool) {}
func (noopMetrics) CacheInvalidated(int)                                {}
func (noopMetrics) WeatherLookup(string)                                {}
func (noopMetrics) ObservationRecorded(string, string)                  {}
func (noopMetrics) AlertPublished(string)                               {}

type Option func(*Engine)

func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithAlertStore persists every published alert.
func WithAlertStore(a repository.AlertRepository) Option {
	return func(e *Engine) { e.alerts = a }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

type Engine struct {
	cfg       config.ForecastConfig
	drones    config.DroneConfig
	store     repository.ObservationRepository
	weather   weather.Provider
	scorer    *risk.Scorer
	optimizer *routing.Optimizer
	minArea   models.RiskCategory
	alertAt   models.RiskCategory
	cache     *resultCache

	// mu orders observation writes against a forecast's snapshot-to-cache
	// window: forecasts hold it shared, RecordObservation exclusively.
	mu sync.RWMutex

	metrics  Metrics
	notifier Notifier
	alerts   repository.AlertRepository
	now      func() time.Time
	log      *slog.Logger
}

// NewEngine validates the configuration once; requests are not re-checked
// against it later.
func NewEngine(cfg config.ForecastConfig, drones config.DroneConfig, store repository.ObservationRepository, provider weather.Provider, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forecast config: %w", err)
	}
	if err := drones.Validate(); err != nil {
		return nil, fmt.Errorf("invalid drone config: %w", err)
	}
	if store == nil || provider == nil {
		return nil, errors.New("observation store and weather provider are required")
	}

	scorer, err := risk.NewScorer(cfg.RiskWeights())
	if err != nil {
		return nil, err
	}
	minArea, _ := models.ParseRiskCategory(cfg.MinAreaCategory)
	alertAt, _ := models.ParseRiskCategory(cfg.AlertCategory)

	e := &Engine{
		cfg:     cfg,
		drones:  drones,
		store:   store,
		weather: provider,
		scorer:  scorer,
		optimizer: routing.NewOptimizer(routing.CostModel{
			CostPerKm:         drones.CostPerKm,
			CostPerHectare:    drones.CostPerHectare,
			BenefitPerHectare: drones.BenefitPerHectare,
		}),
		minArea: minArea,
		alertAt: alertAt,
		cache:   newResultCache(),
		metrics: noopMetrics{},
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "forecast")
	return e, nil
}

// GenerateForecast never returns nil and never panics; failures come back as
// a result with Status failure and an ErrorKind. Identical requests are served
// the same cached result until an observation inside its bounds is recorded.
func (e *Engine) GenerateForecast(ctx context.Context, req models.ForecastRequest) (result *models.ForecastResult) {
	start := time.Now()
	cached := false
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("forecast panicked", "panic", r, "stack", string(debug.Stack()))
			result = e.failure(req, internalError("unexpected failure", fmt.Errorf("%v", r)))
		}
		e.metrics.ObserveForecast(req.PestType, string(result.Status), time.Since(start), cached)
	}()

	p, err := e.resolve(req)
	if err != nil {
		return e.failure(req, err)
	}
	if hit, ok := e.cache.get(p.key); ok {
		cached = true
		e.log.Debug("forecast cache hit", "pest_type", p.req.PestType, "id", hit.ID)
		return hit
	}

	result, err = e.compute(ctx, p)
	if err != nil {
		return e.failure(p.req, err)
	}

	e.publishAlert(ctx, result)
	e.log.Info("forecast generated",
		"id", result.ID,
		"pest_type", p.req.PestType,
		"overall_risk", result.Summary.OverallRisk,
		"horizons", len(result.Horizons),
		"observations", result.Summary.ObservationCount,
		"duration", time.Since(start),
	)
	return result
}

// compute runs the pipeline and caches the result. No observation inside the
// bounds can be recorded between the snapshot and the put.
func (e *Engine) compute(ctx context.Context, p *plan) (*models.ForecastResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	result, err := e.run(ctx, p)
	if err != nil {
		return nil, err
	}
	e.cache.put(p.key, p.bounds, result)
	return result, nil
}

func (e *Engine) run(ctx context.Context, p *plan) (*models.ForecastResult, error) {
	observations, err := e.store.ListObservations(ctx, repository.Filter{PestType: p.req.PestType, Bounds: &p.bounds})
	if err != nil {
		return nil, internalError("loading observations", err)
	}
	grid, err := e.densityGrid(p.bounds, observations)
	if err != nil {
		return nil, internalError("building density grid", err)
	}

	var warnings []string
	if cellHa := grid.CellAreaHectares(); p.routing.CapacityHectares < cellHa {
		warnings = append(warnings, partialData("drone capacity %.1f ha is smaller than one grid cell (%.1f ha at %.2f km resolution); areas cannot be routed",
			p.routing.CapacityHectares, cellHa, e.cfg.GridResolutionKm))
	}
	report, werr := e.weather.Current(ctx, p.bounds)
	status := models.WeatherFresh
	switch {
	case werr != nil || report == nil || len(report.Readings) == 0:
		status = models.WeatherMissing
		report = nil
		if len(observations) == 0 {
			e.metrics.WeatherLookup(string(status))
			return nil, &Error{Kind: KindDataUnavailable, Message: "no observations and no weather data for the region", Err: werr}
		}
		e.log.Warn("weather unavailable, using default suitability", "error", werr)
		warnings = append(warnings, partialData("weather unavailable, default suitability %.2f used", e.cfg.DefaultSuitability))
	case report.Stale:
		status = models.WeatherStale
		warnings = append(warnings, partialData("weather data is stale (fetched %s)", report.FetchedAt.Format(time.RFC3339)))
	}
	e.metrics.WeatherLookup(string(status))

	var suitability []float64
	if report != nil {
		suitability = make([]float64, len(grid.Cells))
		for i, c := range grid.Cells {
			suitability[i] = report.SuitabilityAt(p.profile, c.Latitude, c.Longitude)
		}
	}

	modelOpts := []diffusion.Option{diffusion.WithResolution(e.cfg.GridResolutionKm)}
	if e.cfg.WindDrift && report != nil {
		east, north := report.MeanWindKmh()
		modelOpts = append(modelOpts, diffusion.WithDrift(east*e.cfg.WindDriftFactor, north*e.cfg.WindDriftFactor))
	}
	model, err := diffusion.New(e.cfg.DiffusionRate, modelOpts...)
	if err != nil {
		return nil, internalError("building diffusion model", err)
	}

	now := e.now().UTC()
	inputs := risk.GridInputs{
		Suitability:        suitability,
		DefaultSuitability: e.cfg.DefaultSuitability,
		CropVulnerability:  p.profile.CropVulnerability,
		HistoricalRisk:     e.cfg.HistoricalRisk,
		SeasonalFactor:     risk.SeasonalFactor(now, p.req.CenterLat),
		CountSaturation:    e.cfg.CountSaturation,
	}
	areaOpts := routing.AreaOptions{
		MinCategory:     e.minArea,
		MaxAreaHectares: math.Min(e.cfg.MaxAreaHectares, p.routing.CapacityHectares),
	}
	base := models.Coordinates{Latitude: p.req.CenterLat, Longitude: p.req.CenterLon}
	sources := diffusion.SourcesFromGrid(grid)

	result := &models.ForecastResult{
		ID:          uuid.NewString(),
		Status:      models.StatusSuccess,
		GeneratedAt: now,
		Request:     p.req,
		Bounds:      p.bounds,
		Horizons:    make([]string, 0, len(p.req.ForecastHours)),
		Forecasts:   make(map[string]*models.HorizonForecast, len(p.req.ForecastHours)),
	}
	scores := make([]risk.HorizonScores, 0, len(p.req.ForecastHours))

	for _, h := range p.req.ForecastHours {
		label := models.HorizonLabel(h)

		projected := model.Project(grid, sources, float64(h))
		cells := e.scorer.ScoreGrid(projected.Grid, inputs)
		high := risk.HighRiskAreas(cells, models.RiskHigh)
		priorities := routing.ExtractAreas(projected.Grid, cells, observations, areaOpts)

		routes, err := e.optimizer.OptimizeSprayRoutes(routing.AreasFromPriorities(priorities), base, p.routing)
		if err != nil {
			return nil, internalError("optimizing routes for "+label, err)
		}
		if n := len(routes.Unserved); n > 0 {
			warnings = append(warnings, partialData("%d of %d intervention areas at %s could not be routed", n, len(priorities), label))
		}

		result.Horizons = append(result.Horizons, label)
		result.Forecasts[label] = &models.HorizonForecast{
			HorizonHours:           h,
			RiskGrid:               cells,
			HighRiskAreas:          high,
			InterventionPriorities: priorities,
			Confidence:             e.confidence(h, len(observations), status),
			Routes:                 routes,
		}
		scores = append(scores, risk.HorizonScores{Label: label, Cells: cells, HighRiskAreas: len(high)})
	}

	sum := risk.Summarize(scores)
	result.Summary = models.ForecastSummary{
		OverallRisk:       sum.OverallRisk,
		HighRiskAreaCount: sum.HighRiskAreaCount,
		PeakRiskTime:      sum.PeakRiskTime,
		Recommendations:   sum.Recommendations,
		ObservationCount:  len(observations),
		WeatherStatus:     status,
	}
	result.Warnings = warnings
	return result, nil
}

func (e *Engine) densityGrid(bounds models.Bounds, observations []models.Observation) (*spatial.Grid, error) {
	grid, err := spatial.Build(bounds, e.cfg.GridResolutionKm)
	if err != nil {
		return nil, err
	}
	if err := spatial.ComputeDensity(grid, observations, e.cfg.InfluenceRadiusKm); err != nil {
		return nil, err
	}
	return grid, nil
}

// confidence decays with lead time and grows with observation count, reduced
// when weather is stale or missing. Always within (0, 1].
func (e *Engine) confidence(hours, observations int, status models.WeatherStatus) float64 {
	data := math.Min(1, 0.6+0.1*float64(observations))
	wx := 1.0
	switch status {
	case models.WeatherStale:
		wx = 0.8
	case models.WeatherMissing:
		wx = 0.6
	}
	c := e.cfg.ConfidenceBase * math.Exp(-float64(hours)/e.cfg.ConfidenceDecayHours) * data * wx
	return math.Max(1e-6, math.Min(1, c))
}

func (e *Engine) failure(req models.ForecastRequest, err error) *models.ForecastResult {
	kind := KindOf(err)
	msg := err.Error()
	var fe *Error
	if errors.As(err, &fe) {
		msg = fe.Message
	}
	if kind == KindInternal {
		e.log.Error("forecast failed", "pest_type", req.PestType, "error", err)
	} else {
		e.log.Warn("forecast rejected", "pest_type", req.PestType, "kind", kind, "error", err)
	}
	return &models.ForecastResult{
		ID:          uuid.NewString(),
		Status:      models.StatusFailure,
		ErrorKind:   string(kind),
		Message:     msg,
		GeneratedAt: e.now().UTC(),
		Request:     req,
		Summary:     models.ForecastSummary{Recommendations: []string{}},
		Horizons:    []string{},
		Forecasts:   map[string]*models.HorizonForecast{},
	}
}

func (e *Engine) publishAlert(ctx context.Context, r *models.ForecastResult) {
	if !r.Summary.OverallRisk.AtLeast(e.alertAt) {
		return
	}
	alert := &models.RiskAlert{
		ID:                uuid.NewString(),
		ForecastID:        r.ID,
		PestType:          r.Request.PestType,
		Center:            models.Coordinates{Latitude: r.Request.CenterLat, Longitude: r.Request.CenterLon},
		RadiusKm:          r.Request.RadiusKm,
		Category:          r.Summary.OverallRisk,
		PeakRiskTime:      r.Summary.PeakRiskTime,
		HighRiskAreaCount: r.Summary.HighRiskAreaCount,
		CreatedAt:         r.GeneratedAt,
	}
	if e.alerts != nil {
		if err := e.alerts.AddAlert(ctx, alert); err != nil {
			e.log.Error("storing risk alert failed", "id", alert.ID, "error", err)
		}
	}
	if e.notifier != nil {
		e.notifier.Broadcast(alert)
	}
	e.metrics.AlertPublished(string(alert.Category))
	e.log.Info("risk alert published", "id", alert.ID, "pest_type", alert.PestType, "category", alert.Category)
}

// RecordObservation stores an observation and drops every cached forecast
// whose bounds contain it. A missing ID or timestamp is filled in.
func (e *Engine) RecordObservation(ctx context.Context, o models.Observation, source string) (models.Observation, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.PestType = strings.ToLower(strings.TrimSpace(o.PestType))
	if o.Timestamp.IsZero() {
		o.Timestamp = e.now().UTC()
	}
	if err := o.Validate(); err != nil {
		return o, &Error{Kind: KindInput, Message: err.Error()}
	}
	n, err := e.addAndInvalidate(ctx, &o)
	if err != nil {
		return o, err
	}
	e.metrics.CacheInvalidated(n)
	e.metrics.ObservationRecorded(o.PestType, source)
	e.log.Debug("observation recorded", "id", o.ID, "pest_type", o.PestType, "source", source, "invalidated", n)
	return o, nil
}

func (e *Engine) addAndInvalidate(ctx context.Context, o *models.Observation) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Add(ctx, o); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return 0, &Error{Kind: KindInput, Message: "observation " + o.ID + " already recorded", Err: err}
		}
		return 0, internalError("storing observation", err)
	}
	return e.cache.invalidate(o.Latitude, o.Longitude), nil
}

// Observations lists stored observations.
func (e *Engine) Observations(ctx context.Context, f repository.Filter) ([]models.Observation, error) {
	return e.store.ListObservations(ctx, f)
}

// PestDensityGrid is the current density for a pest inside bounds; every
// cell is 0 when no observations fall inside.
func (e *Engine) PestDensityGrid(ctx context.Context, bounds models.Bounds, pestType string) (*spatial.Grid, error) {
	observations, err := e.store.ListObservations(ctx, repository.Filter{PestType: pestType, Bounds: &bounds})
	if err != nil {
		return nil, fmt.Errorf("loading observations: %w", err)
	}
	return e.densityGrid(bounds, observations)
}

// RefreshCache drops every cached forecast and returns how many were removed.
func (e *Engine) RefreshCache() int {
	n := e.cache.clear()
	e.metrics.CacheInvalidated(n)
	e.log.Info("forecast cache refreshed", "removed", n)
	return n
}

func (e *Engine) CachedForecasts() int {
	return e.cache.len()
}
