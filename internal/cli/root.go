// Package cli implements the pestcast command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mr1hm/pest-forecast/internal/config"
	"github.com/mr1hm/pest-forecast/internal/forecast"
	internalgrpc "github.com/mr1hm/pest-forecast/internal/grpc"
	"github.com/mr1hm/pest-forecast/internal/logging"
	"github.com/mr1hm/pest-forecast/internal/models"
	"github.com/mr1hm/pest-forecast/internal/repository"
	"github.com/mr1hm/pest-forecast/internal/weather"
)

type rootOptions struct {
	LogLevel   string
	ServerAddr string
	Timeout    time.Duration
}

// forecaster is either an in-process engine or a remote ForecastService.
type forecaster interface {
	RecordObservation(ctx context.Context, o models.Observation) error
	GenerateForecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error)
	Close() error
}

func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pestcast",
		Short: "Pest infestation forecasts and drone spray routes",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// stdout carries results
			slog.SetDefault(logging.New(os.Stderr, opts.LogLevel, "text"))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.ServerAddr, "server", "", "gRPC address of a pestcast server; runs locally when empty")
	pf.DurationVar(&opts.Timeout, "timeout", time.Minute, "overall operation timeout")

	cmd.AddCommand(newForecastCmd(opts))
	cmd.AddCommand(newDemoCmd(opts))
	cmd.AddCommand(newPestsCmd())

	return cmd
}

func (o *rootOptions) forecaster() (forecaster, error) {
	if o.ServerAddr != "" {
		client, err := internalgrpc.Dial(o.ServerAddr)
		if err != nil {
			return nil, err
		}
		return remoteForecaster{client: client}, nil
	}
	return newLocalForecaster()
}

type localForecaster struct {
	engine *forecast.Engine
}

// newLocalForecaster reads pipeline settings from the environment and keeps
// observations in memory for the life of the command.
func newLocalForecaster() (*localForecaster, error) {
	engine, err := forecast.NewEngine(
		config.ForecastFromEnv(),
		config.DronesFromEnv(),
		repository.NewMemoryStore(),
		weatherProvider(config.WeatherFromEnv()),
	)
	if err != nil {
		return nil, err
	}
	return &localForecaster{engine: engine}, nil
}

func weatherProvider(cfg config.WeatherConfig) weather.Provider {
	if cfg.UseStatic() {
		return weather.DemoConditions
	}
	return weather.NewFallback(
		weather.NewOpenWeatherMap(cfg.URL, cfg.APIKey, cfg.Timeout),
		weather.NewMemoryCache(cfg.FallbackTTL),
	)
}

func (l *localForecaster) RecordObservation(ctx context.Context, o models.Observation) error {
	_, err := l.engine.RecordObservation(ctx, o, "cli")
	return err
}

func (l *localForecaster) GenerateForecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	return l.engine.GenerateForecast(ctx, req), nil
}

func (l *localForecaster) Close() error { return nil }

type remoteForecaster struct {
	client *internalgrpc.Client
}

func (r remoteForecaster) RecordObservation(ctx context.Context, o models.Observation) error {
	if _, err := r.client.RecordObservation(ctx, o, "cli"); err != nil {
		return fmt.Errorf("error recording observation: %w", err)
	}
	return nil
}

func (r remoteForecaster) GenerateForecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	return r.client.GenerateForecast(ctx, req)
}

func (r remoteForecaster) Close() error {
	return r.client.Close()
}
