package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mr1hm/pest-forecast/internal/models"
)

type forecastOptions struct {
	Lat          float64
	Lon          float64
	RadiusKm     float64
	Pest         string
	Hours        []int
	MaxDrones    int
	CapacityHa   float64
	RangeKm      float64
	Observations []string
	Format       string
}

func (o *forecastOptions) request() models.ForecastRequest {
	return models.ForecastRequest{
		CenterLat:     o.Lat,
		CenterLon:     o.Lon,
		RadiusKm:      o.RadiusKm,
		PestType:      o.Pest,
		ForecastHours: o.Hours,
		MaxDrones:     o.MaxDrones,
		DroneCapacity: o.CapacityHa,
		DroneRangeKm:  o.RangeKm,
	}
}

func newForecastCmd(root *rootOptions) *cobra.Command {
	opts := &forecastOptions{}

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast pest risk for an area and plan spray routes",
		Example: `  pestcast forecast --lat 36.7783 --lon -119.4179 --radius-km 15 --pest aphids \
    --observation 36.7883,-119.4079,15,0.7 --observation 36.7683,-119.4279,8,0.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.Format); err != nil {
				return err
			}
			observations, err := parseObservations(opts.Observations, opts.Pest)
			if err != nil {
				return err
			}
			return runForecast(cmd.Context(), root, cmd.OutOrStdout(), observations, opts.request(), opts.Format)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.Lat, "lat", 0, "center latitude [REQUIRED]")
	f.Float64Var(&opts.Lon, "lon", 0, "center longitude [REQUIRED]")
	f.Float64Var(&opts.RadiusKm, "radius-km", 10, "radius around the center in km")
	f.StringVar(&opts.Pest, "pest", "", "pest type, see 'pestcast pests' [REQUIRED]")
	f.IntSliceVar(&opts.Hours, "hours", []int{24, 48, 72}, "forecast horizons in hours")
	f.IntVar(&opts.MaxDrones, "max-drones", 0, "drones available (0 uses the configured default)")
	f.Float64Var(&opts.CapacityHa, "capacity-ha", 0, "hectares one drone sprays per sortie (0 uses the configured default)")
	f.Float64Var(&opts.RangeKm, "range-km", 0, "round trip range per drone in km (0 uses the configured default)")
	f.StringArrayVar(&opts.Observations, "observation", nil, "scouting observation lat,lon,count,severity[,pest] (repeatable)")
	f.StringVar(&opts.Format, "format", "text", "output format (text, json)")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	cmd.MarkFlagRequired("pest")

	return cmd
}

// demoObservations is a small aphid outbreak in the Central Valley.
var demoObservations = []models.Observation{
	{Latitude: 36.7883, Longitude: -119.4079, PestType: "aphids", Count: 15, Severity: 0.7, FieldID: "field_1"},
	{Latitude: 36.7683, Longitude: -119.4279, PestType: "aphids", Count: 8, Severity: 0.5, FieldID: "field_2"},
	{Latitude: 36.7833, Longitude: -119.4129, PestType: "aphids", Count: 12, Severity: 0.6, FieldID: "field_3"},
}

func newDemoCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a forecast over a built-in aphid outbreak",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			req := models.ForecastRequest{
				CenterLat:     36.7783,
				CenterLon:     -119.4179,
				RadiusKm:      15,
				PestType:      "aphids",
				ForecastHours: []int{24, 48, 72},
			}
			return runForecast(cmd.Context(), root, cmd.OutOrStdout(), demoObservations, req, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json)")

	return cmd
}

func runForecast(ctx context.Context, root *rootOptions, out io.Writer, observations []models.Observation, req models.ForecastRequest, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, root.Timeout)
	defer cancel()

	fc, err := root.forecaster()
	if err != nil {
		return err
	}
	defer fc.Close()

	for _, o := range observations {
		if err := fc.RecordObservation(ctx, o); err != nil {
			return fmt.Errorf("invalid observation at %.4f,%.4f: %w", o.Latitude, o.Longitude, err)
		}
	}

	result, err := fc.GenerateForecast(ctx, req)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("error encoding result: %w", err)
		}
	default:
		writeText(out, result)
	}

	if !result.Succeeded() {
		return fmt.Errorf("forecast failed (%s): %s", result.ErrorKind, result.Message)
	}
	return nil
}

func validateFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid output format: %s (must be text/json)", format)
	}
	return nil
}

// parseObservations reads lat,lon,count,severity[,pest] values; pest falls
// back to defaultPest.
func parseObservations(values []string, defaultPest string) ([]models.Observation, error) {
	observations := make([]models.Observation, 0, len(values))
	for _, v := range values {
		parts := strings.Split(v, ",")
		if len(parts) != 4 && len(parts) != 5 {
			return nil, fmt.Errorf("invalid observation %q: expected lat,lon,count,severity[,pest]", v)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		lat, errLat := strconv.ParseFloat(parts[0], 64)
		lon, errLon := strconv.ParseFloat(parts[1], 64)
		count, errCount := strconv.Atoi(parts[2])
		severity, errSev := strconv.ParseFloat(parts[3], 64)
		if errLat != nil || errLon != nil || errCount != nil || errSev != nil {
			return nil, fmt.Errorf("invalid observation %q: non-numeric field", v)
		}

		o := models.Observation{
			Latitude:  lat,
			Longitude: lon,
			Count:     count,
			Severity:  severity,
			PestType:  defaultPest,
		}
		if len(parts) == 5 && parts[4] != "" {
			o.PestType = parts[4]
		}
		observations = append(observations, o)
	}
	return observations, nil
}
