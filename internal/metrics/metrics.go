// Package metrics exposes Prometheus collectors for the forecast service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pestcast"

type Metrics struct {
	registry *prometheus.Registry

	forecasts         *prometheus.CounterVec
	forecastDuration  *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheInvalidated  prometheus.Counter
	weather           *prometheus.CounterVec
	observations      *prometheus.CounterVec
	alerts            *prometheus.CounterVec
	alertDrops        *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	ingestionFailures *prometheus.CounterVec
}

// New registers every collector on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"pest_type", "status"}),
		forecastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Time to produce a forecast result.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"cached"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_cache_hits_total",
			Help:      "Forecasts served from the result cache.",
		}),
		cacheInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_cache_invalidations_total",
			Help:      "Cached forecasts dropped by new observations or refresh.",
		}),
		weather: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_lookups_total",
			Help:      "Weather lookups by freshness.",
		}, []string{"status"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_recorded_total",
			Help:      "Field observations accepted.",
		}, []string{"pest_type", "source"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_alerts_total",
			Help:      "Risk alerts published.",
		}, []string{"category"}),
		alertDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_alert_stream_drops_total",
			Help:      "Risk alerts a slow stream subscriber missed.",
		}, []string{"category"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ingestionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_failures_total",
			Help:      "Feed polls or records that failed.",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.forecasts, m.forecastDuration, m.cacheHits, m.cacheInvalidated, m.weather,
		m.observations, m.alerts, m.alertDrops, m.httpRequests, m.httpDuration, m.ingestionFailures,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveForecast(pestType, status string, d time.Duration, cached bool) {
	m.forecasts.WithLabelValues(pestType, status).Inc()
	m.forecastDuration.WithLabelValues(strconv.FormatBool(cached)).Observe(d.Seconds())
	if cached {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheInvalidated(n int) {
	m.cacheInvalidated.Add(float64(n))
}

func (m *Metrics) WeatherLookup(status string) {
	m.weather.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservationRecorded(pestType, source string) {
	m.observations.WithLabelValues(pestType, source).Inc()
}

func (m *Metrics) AlertPublished(category string) {
	m.alerts.WithLabelValues(category).Inc()
}

func (m *Metrics) AlertDropped(category string) {
	m.alertDrops.WithLabelValues(category).Inc()
}

func (m *Metrics) IngestionFailed(source string) {
	m.ingestionFailures.WithLabelValues(source).Inc()
}

// Middleware records request counts and latency keyed by the matched route
// so path parameters do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
