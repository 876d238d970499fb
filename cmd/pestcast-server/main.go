package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/pest-forecast/internal/api"
	"github.com/mr1hm/pest-forecast/internal/config"
	"github.com/mr1hm/pest-forecast/internal/forecast"
	internalgrpc "github.com/mr1hm/pest-forecast/internal/grpc"
	"github.com/mr1hm/pest-forecast/internal/ingestion"
	"github.com/mr1hm/pest-forecast/internal/logging"
	"github.com/mr1hm/pest-forecast/internal/metrics"
	"github.com/mr1hm/pest-forecast/internal/repository"
	"github.com/mr1hm/pest-forecast/internal/scheduler"
	"github.com/mr1hm/pest-forecast/internal/weather"
)

type store interface {
	repository.ObservationRepository
	repository.AlertRepository
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "db", cfg.DB.Driver)

	var db store
	switch cfg.DB.Driver {
	case "sqlite":
		sqlite, err := repository.NewSQLiteDB(cfg.DB.Path)
		if err != nil {
			logging.Fatalf("Failed to initialize database: %v", err)
		}
		defer sqlite.Close()
		db = sqlite
	default:
		db = repository.NewMemoryStore()
	}

	provider, closeWeather := newWeatherProvider(cfg)
	defer closeWeather()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// Create broadcaster for gRPC streaming
	broadcaster := internalgrpc.NewBroadcaster(internalgrpc.WithDropMetrics(m))

	engine, err := forecast.NewEngine(cfg.Forecast, cfg.Drones, db, provider,
		forecast.WithMetrics(m),
		forecast.WithNotifier(broadcaster),
		forecast.WithAlertStore(db),
	)
	if err != nil {
		logging.Fatalf("Failed to create forecast engine: %v", err)
	}

	// Start ingestion manager
	mgr := ingestion.NewManager(cfg, db, engine, m)
	mgr.Start(ctx)

	var sched *scheduler.Scheduler
	if cfg.Cache.RefreshSchedule != "" {
		sched, err = scheduler.New(cfg.Cache.RefreshSchedule, engine)
		if err != nil {
			logging.Fatalf("Failed to schedule cache refresh: %v", err)
		}
		sched.Start()
	}

	// Start gRPC server
	grpcServer := internalgrpc.NewServer(engine, broadcaster)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	if cfg.Metrics.Enabled {
		router.Use(m.Middleware())
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	handler := api.NewHandler(engine, db)
	handler.RegisterRoutes(router, api.NewClientRateLimiter(cfg.Server.RateLimitRPS).Middleware())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	if sched != nil {
		sched.Stop()
	}
	broadcaster.Close() // Close all streams gracefully
	grpcServer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

// newWeatherProvider serves fixed demo conditions without an API key;
// otherwise live readings fall back to the last cached report per area.
func newWeatherProvider(cfg *config.Config) (weather.Provider, func()) {
	if cfg.Weather.UseStatic() {
		slog.Info("using static demo weather")
		return weather.DemoConditions, func() {}
	}

	live := weather.NewOpenWeatherMap(cfg.Weather.URL, cfg.Weather.APIKey, cfg.Weather.Timeout)
	if cfg.Weather.CacheBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		slog.Info("weather fallback cache on redis", "addr", cfg.Redis.Addr)
		return weather.NewFallback(live, weather.NewRedisCache(client, cfg.Weather.FallbackTTL)), func() { client.Close() }
	}
	return weather.NewFallback(live, weather.NewMemoryCache(cfg.Weather.FallbackTTL)), func() {}
}
