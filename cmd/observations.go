package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/weather-etl/internal/model"
	"github.com/sells-group/weather-etl/internal/store"
)

var observationsCmd = &cobra.Command{
	Use:   "observations",
	Short: "List stored weather observations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		city, _ := cmd.Flags().GetString("city")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		observations, err := st.ListObservations(ctx, store.ObservationFilter{
			City:  city,
			Limit: limit,
		})
		if err != nil {
			return eris.Wrap(err, "list observations")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(observations)
		}

		if len(observations) == 0 {
			fmt.Fprintln(os.Stderr, "No observations found.")
			return nil
		}

		formatObservations(os.Stdout, observations)
		return nil
	},
}

func init() {
	observationsCmd.Flags().String("city", "", "filter by city name")
	observationsCmd.Flags().Int("limit", 50, "max number of observations to display")
	observationsCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(observationsCmd)
}

// formatObservations writes a tabular list of observations to out. Null
// fields render as a dash.
func formatObservations(out io.Writer, observations []model.Observation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CITY\tTIMESTAMP\tTEMP_C\tWIND_KMH\tWIND_DEG\tCODE\tDAY\tRETRIEVED")

	for _, obs := range observations {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			obs.City,
			cellString(obs.Timestamp),
			cellFloat(obs.TemperatureC),
			cellFloat(obs.WindspeedKmh),
			cellFloat(obs.WinddirectionDeg),
			cellInt(obs.Weathercode),
			cellInt(obs.IsDay),
			obs.RetrievalTimestamp,
		)
	}
	_ = w.Flush()
}

func cellString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func cellFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func cellInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
