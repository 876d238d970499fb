package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/pest-forecast/internal/risk"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	Worker    WorkerConfig
	Ingestion IngestionConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
	Forecast  ForecastConfig
	Drones    DroneConfig
	Weather   WeatherConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Metrics   MetricsConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   int
	AllowedOrigins []string
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type IngestionConfig struct {
	ScoutingEnabled      bool
	ScoutingURL          string
	ScoutingPollInterval time.Duration
}

type DatabaseConfig struct {
	Driver string // "memory" or "sqlite"
	Path   string
}

type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// ForecastConfig holds every tunable of the forecast pipeline.
type ForecastConfig struct {
	GridResolutionKm  float64
	InfluenceRadiusKm float64
	MaxRadiusKm       float64
	DiffusionRate     float64 // km²/h
	WindDrift         bool
	WindDriftFactor   float64 // share of wind speed pests travel with
	MaxHorizonHours   int
	DefaultHorizons   []int

	WeightWeather           float64
	WeightPestCount         float64
	WeightCropVulnerability float64
	WeightHistorical        float64
	WeightSeasonal          float64

	CountSaturation    float64
	DefaultSuitability float64 // used when no weather is available
	HistoricalRisk     float64
	MinAreaCategory    string
	AlertCategory      string
	MaxAreaHectares    float64

	ConfidenceBase       float64
	ConfidenceDecayHours float64
}

type DroneConfig struct {
	MaxDrones         int
	CapacityHectares  float64
	RangeKm           float64
	CostPerKm         float64
	CostPerHectare    float64
	BenefitPerHectare float64
}

type WeatherConfig struct {
	APIKey       string
	URL          string
	Timeout      time.Duration
	DemoMode     bool
	CacheBackend string // "memory" or "redis"
	FallbackTTL  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	RefreshSchedule string // cron spec; empty disables scheduled refresh
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 5),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Ingestion: IngestionConfig{
			ScoutingEnabled:      getEnvBool("SCOUTING_ENABLED", false),
			ScoutingURL:          getEnv("SCOUTING_URL", ""),
			ScoutingPollInterval: getEnvDuration("SCOUTING_POLL_INTERVAL", 15*time.Minute),
		},
		DB: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "memory"),
			Path:   getEnv("DB_PATH", "./data/pest-forecast.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Forecast: ForecastFromEnv(),
		Drones:   DronesFromEnv(),
		Weather:  WeatherFromEnv(),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			RefreshSchedule: getEnv("CACHE_REFRESH_SCHEDULE", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ForecastFromEnv reads the pipeline settings on their own so the CLI can
// run without the server sections.
func ForecastFromEnv() ForecastConfig {
	d := DefaultForecast()
	return ForecastConfig{
		GridResolutionKm:        getEnvFloat("FORECAST_GRID_RESOLUTION_KM", d.GridResolutionKm),
		InfluenceRadiusKm:       getEnvFloat("FORECAST_INFLUENCE_RADIUS_KM", d.InfluenceRadiusKm),
		MaxRadiusKm:             getEnvFloat("FORECAST_MAX_RADIUS_KM", d.MaxRadiusKm),
		DiffusionRate:           getEnvFloat("FORECAST_DIFFUSION_RATE", d.DiffusionRate),
		WindDrift:               getEnvBool("FORECAST_WIND_DRIFT", d.WindDrift),
		WindDriftFactor:         getEnvFloat("FORECAST_WIND_DRIFT_FACTOR", d.WindDriftFactor),
		MaxHorizonHours:         getEnvInt("FORECAST_MAX_HORIZON_HOURS", d.MaxHorizonHours),
		DefaultHorizons:         getEnvIntList("FORECAST_DEFAULT_HOURS", d.DefaultHorizons),
		WeightWeather:           getEnvFloat("RISK_WEIGHT_WEATHER", d.WeightWeather),
		WeightPestCount:         getEnvFloat("RISK_WEIGHT_PEST_COUNT", d.WeightPestCount),
		WeightCropVulnerability: getEnvFloat("RISK_WEIGHT_CROP", d.WeightCropVulnerability),
		WeightHistorical:        getEnvFloat("RISK_WEIGHT_HISTORICAL", d.WeightHistorical),
		WeightSeasonal:          getEnvFloat("RISK_WEIGHT_SEASONAL", d.WeightSeasonal),
		CountSaturation:         getEnvFloat("RISK_COUNT_SATURATION", d.CountSaturation),
		DefaultSuitability:      getEnvFloat("RISK_DEFAULT_SUITABILITY", d.DefaultSuitability),
		HistoricalRisk:          getEnvFloat("RISK_HISTORICAL", d.HistoricalRisk),
		MinAreaCategory:         getEnv("ROUTING_MIN_CATEGORY", d.MinAreaCategory),
		AlertCategory:           getEnv("ALERT_MIN_CATEGORY", d.AlertCategory),
		MaxAreaHectares:         getEnvFloat("ROUTING_MAX_AREA_HECTARES", d.MaxAreaHectares),
		ConfidenceBase:          getEnvFloat("CONFIDENCE_BASE", d.ConfidenceBase),
		ConfidenceDecayHours:    getEnvFloat("CONFIDENCE_DECAY_HOURS", d.ConfidenceDecayHours),
	}
}

func DefaultForecast() ForecastConfig {
	return ForecastConfig{
		GridResolutionKm:        1.0,
		InfluenceRadiusKm:       5.0,
		MaxRadiusKm:             100,
		DiffusionRate:           0.5,
		WindDriftFactor:         0.05,
		MaxHorizonHours:         240,
		DefaultHorizons:         []int{24, 48, 72},
		WeightWeather:           0.3,
		WeightPestCount:         0.3,
		WeightCropVulnerability: 0.2,
		WeightHistorical:        0.1,
		WeightSeasonal:          0.1,
		CountSaturation:         10,
		DefaultSuitability:      0.5,
		HistoricalRisk:          0.3,
		MinAreaCategory:         "high",
		AlertCategory:           "high",
		MaxAreaHectares:         500,
		ConfidenceBase:          0.9,
		ConfidenceDecayHours:    120,
	}
}

func WeatherFromEnv() WeatherConfig {
	return WeatherConfig{
		APIKey:       getEnv("OPENWEATHER_API_KEY", ""),
		URL:          getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5/weather"),
		Timeout:      getEnvDuration("WEATHER_TIMEOUT", 10*time.Second),
		DemoMode:     getEnvBool("DEMO_MODE", false),
		CacheBackend: getEnv("WEATHER_CACHE", "memory"),
		FallbackTTL:  getEnvDuration("WEATHER_FALLBACK_TTL", 6*time.Hour),
	}
}

// UseStatic reports whether forecasts should run on fixed demo conditions.
func (w WeatherConfig) UseStatic() bool {
	return w.DemoMode || w.APIKey == ""
}

func DronesFromEnv() DroneConfig {
	d := DefaultDrones()
	return DroneConfig{
		MaxDrones:         getEnvInt("DRONE_MAX", d.MaxDrones),
		CapacityHectares:  getEnvFloat("DRONE_CAPACITY_HA", d.CapacityHectares),
		RangeKm:           getEnvFloat("DRONE_RANGE_KM", d.RangeKm),
		CostPerKm:         getEnvFloat("DRONE_COST_PER_KM", d.CostPerKm),
		CostPerHectare:    getEnvFloat("DRONE_COST_PER_HA", d.CostPerHectare),
		BenefitPerHectare: getEnvFloat("DRONE_BENEFIT_PER_HA", d.BenefitPerHectare),
	}
}

func DefaultDrones() DroneConfig {
	return DroneConfig{
		MaxDrones:         3,
		CapacityHectares:  300,
		RangeKm:           60,
		CostPerKm:         1.5,
		CostPerHectare:    12,
		BenefitPerHectare: 40,
	}
}

func (f ForecastConfig) RiskWeights() risk.Weights {
	return risk.Weights{
		Weather:           f.WeightWeather,
		PestCount:         f.WeightPestCount,
		CropVulnerability: f.WeightCropVulnerability,
		Historical:        f.WeightHistorical,
		Seasonal:          f.WeightSeasonal,
	}
}

var validCategories = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

// Validate checks the pipeline settings.
func (f ForecastConfig) Validate() error {
	var errs []error
	positive := map[string]float64{
		"grid resolution":        f.GridResolutionKm,
		"influence radius":       f.InfluenceRadiusKm,
		"max radius":             f.MaxRadiusKm,
		"diffusion rate":         f.DiffusionRate,
		"count saturation":       f.CountSaturation,
		"max area hectares":      f.MaxAreaHectares,
		"confidence decay hours": f.ConfidenceDecayHours,
	}
	for name, v := range positive {
		if !(v > 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	unit := map[string]float64{
		"default suitability": f.DefaultSuitability,
		"historical risk":     f.HistoricalRisk,
		"wind drift factor":   f.WindDriftFactor,
	}
	for name, v := range unit {
		if !(v >= 0 && v <= 1) {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if !(f.ConfidenceBase > 0 && f.ConfidenceBase <= 1) {
		errs = append(errs, fmt.Errorf("confidence base must be within (0,1], got %v", f.ConfidenceBase))
	}
	if f.MaxHorizonHours < 1 {
		errs = append(errs, fmt.Errorf("max horizon hours must be >= 1, got %d", f.MaxHorizonHours))
	}
	if len(f.DefaultHorizons) == 0 {
		errs = append(errs, errors.New("default horizons must not be empty"))
	}
	for _, h := range f.DefaultHorizons {
		if h < 0 || h > f.MaxHorizonHours {
			errs = append(errs, fmt.Errorf("default horizon %d outside [0,%d]", h, f.MaxHorizonHours))
		}
	}
	if err := f.RiskWeights().Validate(); err != nil {
		errs = append(errs, err)
	}
	if !validCategories[f.MinAreaCategory] {
		errs = append(errs, fmt.Errorf("invalid routing min category: %s", f.MinAreaCategory))
	}
	if !validCategories[f.AlertCategory] {
		errs = append(errs, fmt.Errorf("invalid alert category: %s", f.AlertCategory))
	}
	return errors.Join(errs...)
}

func (d DroneConfig) Validate() error {
	var errs []error
	if d.MaxDrones < 1 {
		errs = append(errs, fmt.Errorf("max drones must be >= 1, got %d", d.MaxDrones))
	}
	if !(d.CapacityHectares > 0) {
		errs = append(errs, fmt.Errorf("drone capacity must be positive, got %v", d.CapacityHectares))
	}
	if !(d.RangeKm > 0) {
		errs = append(errs, fmt.Errorf("drone range must be positive, got %v", d.RangeKm))
	}
	if d.CostPerKm < 0 || d.CostPerHectare < 0 || d.BenefitPerHectare < 0 {
		errs = append(errs, errors.New("drone cost and benefit rates must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s, got %d", c.Server.RateLimitRPS)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.DB.Driver != "memory" && c.DB.Driver != "sqlite" {
		return fmt.Errorf("invalid db driver: %s", c.DB.Driver)
	}
	if c.Weather.CacheBackend != "memory" && c.Weather.CacheBackend != "redis" {
		return fmt.Errorf("invalid weather cache backend: %s", c.Weather.CacheBackend)
	}
	if c.Weather.Timeout <= 0 {
		return fmt.Errorf("weather timeout must be positive")
	}

	if c.Ingestion.ScoutingEnabled {
		if c.Ingestion.ScoutingURL == "" {
			return fmt.Errorf("scouting feed enabled without SCOUTING_URL")
		}
		if c.Ingestion.ScoutingPollInterval < time.Minute {
			return fmt.Errorf("scouting poll interval must be at least 1 minute")
		}
	}

	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("invalid forecast config: %w", err)
	}
	if err := c.Drones.Validate(); err != nil {
		return fmt.Errorf("invalid drone config: %w", err)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// getEnvIntList parses "24,48,72"; any bad element falls back entirely.
func getEnvIntList(key string, fallback []int) []int {
	parts := getEnvList(key, nil)
	if parts == nil {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(p)
		if err != nil {
			return fallback
		}
		out = append(out, i)
	}
	return out
}
