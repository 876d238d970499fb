package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mr1hm/pest-forecast/internal/weather"
)

func newPestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pests",
		Short: "List supported pest types and their favoured conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PEST\tOPTIMAL TEMP (C)\tOPTIMAL HUMIDITY (%)\tCALM WIND (km/h)\tCROP VULNERABILITY")
			for _, name := range weather.PestTypes() {
				p, _ := weather.LookupProfile(name)
				fmt.Fprintf(tw, "%s\t%g-%g\t%g-%g\t<=%g\t%.2f\n",
					name, p.TempOptLow, p.TempOptHigh, p.HumidityOptLow, p.HumidityOptHigh, p.WindCalm, p.CropVulnerability)
			}
			return tw.Flush()
		},
	}
}
