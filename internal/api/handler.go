// Package api exposes the forecast engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/pest-forecast/internal/forecast"
	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/repository"
)

type Engine interface {
	GenerateForecast(ctx context.Context, req models.ForecastRequest) *models.ForecastResult
	RecordObservation(ctx context.Context, o models.Observation, source string) (models.Observation, error)
	Observations(ctx context.Context, f repository.Filter) ([]models.Observation, error)
	RefreshCache() int
}

type Handler struct {
	engine Engine
	alerts repository.AlertRepository
}

// NewHandler serves alerts only when alerts is non-nil.
func NewHandler(engine Engine, alerts repository.AlertRepository) *Handler {
	return &Handler{
		engine: engine,
		alerts: alerts,
	}
}

// RegisterRoutes mounts every endpoint. forecastMiddleware, typically a
// ClientRateLimiter, runs only in front of the forecast routes.
func (h *Handler) RegisterRoutes(r *gin.Engine, forecastMiddleware ...gin.HandlerFunc) {
	forecasts := r.Group("/api/forecasts", forecastMiddleware...)
	forecasts.POST("", h.createForecast)
	forecasts.GET("/geojson", h.forecastGeoJSON)
	r.POST("/api/observations", h.createObservation)
	r.GET("/api/observations", h.getObservations)
	r.GET("/api/alerts", h.getAlerts)
	r.POST("/api/cache/refresh", h.refreshCache)
	r.GET("/health", h.health)
}

// statusFor maps a forecast result to its HTTP status. The result body is
// returned whatever the status.
func statusFor(r *models.ForecastResult) int {
	if r.Succeeded() {
		return http.StatusOK
	}
	switch forecast.ErrorKind(r.ErrorKind) {
	case forecast.KindInput:
		return http.StatusBadRequest
	case forecast.KindDataUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) createForecast(c *gin.Context) {
	var req models.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	result := h.engine.GenerateForecast(c.Request.Context(), req)
	c.JSON(statusFor(result), result)
}

func (h *Handler) forecastGeoJSON(c *gin.Context) {
	req, err := forecastRequestFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.engine.GenerateForecast(c.Request.Context(), req)
	if !result.Succeeded() {
		c.JSON(statusFor(result), result)
		return
	}

	horizon := c.Query("horizon")
	if horizon == "" && len(result.Horizons) > 0 {
		horizon = result.Horizons[0]
	}
	fc, err := toGeoJSON(result, horizon)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func forecastRequestFromQuery(c *gin.Context) (models.ForecastRequest, error) {
	var (
		req  models.ForecastRequest
		errs []error
	)

	parse := func(name string, dst *float64, required bool) {
		v := c.Query(name)
		if v == "" {
			if required {
				errs = append(errs, errors.New(name+" is required"))
			}
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, errors.New(name+" must be a number"))
			return
		}
		*dst = f
	}
	parse("lat", &req.CenterLat, true)
	parse("lon", &req.CenterLon, true)
	parse("radius_km", &req.RadiusKm, true)
	parse("capacity_ha", &req.DroneCapacity, false)
	parse("range_km", &req.DroneRangeKm, false)

	req.PestType = c.Query("pest")
	if d := c.Query("max_drones"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			errs = append(errs, errors.New("max_drones must be an integer"))
		}
		req.MaxDrones = n
	}

	hours := c.DefaultQuery("hours", "24")
	for _, s := range strings.Split(hours, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			errs = append(errs, errors.New("hours must be a comma separated list of integers"))
			break
		}
		req.ForecastHours = append(req.ForecastHours, n)
	}

	return req, errors.Join(errs...)
}

func (h *Handler) createObservation(c *gin.Context) {
	var o models.Observation
	if err := c.ShouldBindJSON(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	stored, err := h.engine.RecordObservation(c.Request.Context(), o, "api")
	if err != nil {
		if forecast.KindOf(err) == forecast.KindInput {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to record observation",
		})
		return
	}

	c.JSON(http.StatusCreated, stored)
}

func filterFromQuery(c *gin.Context) repository.Filter {
	filter := repository.Filter{
		Limit: 20, // Default to 20 if limit param not supplied
	}

	if p := c.Query("pest"); p != "" {
		filter.PestType = strings.ToLower(p)
	}
	if f := c.Query("field_id"); f != "" {
		filter.FieldID = f
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}
	return filter
}

func (h *Handler) getObservations(c *gin.Context) {
	observations, err := h.engine.Observations(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch observations",
		})
		return
	}
	if observations == nil {
		observations = []models.Observation{}
	}

	c.JSON(http.StatusOK, gin.H{
		"observations": observations,
		"count":        len(observations),
	})
}

func (h *Handler) getAlerts(c *gin.Context) {
	if h.alerts == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert history is not enabled"})
		return
	}

	alerts, err := h.alerts.ListAlerts(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch alerts",
		})
		return
	}
	if alerts == nil {
		alerts = []models.RiskAlert{}
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (h *Handler) refreshCache(c *gin.Context) {
	n := h.engine.RefreshCache()
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
