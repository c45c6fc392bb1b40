package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vitals-tracker/internal/readings"
	"github.com/joseph-ayodele/vitals-tracker/internal/utils"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

func newAddCmd(c *cli) *cobra.Command {
	var (
		measuredAt string
		notes      string
		values     = make(map[vitals.Field]*float64, len(vitals.Fields))
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a reading typed in by hand",
		Example: "  vitals-batch add --systolic 128 --diastolic 82 --pulse 66\n" +
			"  vitals-batch add --heightCm 172.4 --weightKg 70.1 --measured-at 2025-03-01",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			when, err := parseWhen(measuredAt)
			if err != nil {
				return err
			}
			req := readings.CreateRequest{MeasuredAt: when}
			for _, f := range vitals.Fields {
				if cmd.Flags().Changed(string(f)) {
					req.Values.Set(f, vitals.Float(values[f]))
				}
			}
			if notes != "" {
				req.Notes = &notes
			}

			a, p, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			req.ProfileID = p.ID
			r, err := a.Readings.Create(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"reading": utils.ToPBReading(r)})
		},
	}
	for _, f := range vitals.Fields {
		values[f] = new(float64)
		unit := vitals.Ranges[f].Unit
		if unit == "" {
			unit = "kg/m²"
		}
		cmd.Flags().Float64Var(values[f], string(f), 0, "measured "+string(f)+" ("+unit+")")
	}
	cmd.Flags().StringVar(&measuredAt, "measured-at", "", "when the vitals were taken (RFC 3339 or YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	return cmd
}
