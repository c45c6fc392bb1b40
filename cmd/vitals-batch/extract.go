package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vitals-tracker/internal/ingest"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
	"github.com/joseph-ayodele/vitals-tracker/internal/review"
	"github.com/joseph-ayodele/vitals-tracker/internal/utils"
)

func newExtractCmd(c *cli) *cobra.Command {
	var (
		confirm    bool
		measuredAt string
		notes      string
	)
	cmd := &cobra.Command{
		Use:   "extract FILE...",
		Short: "Extract one reading from up to 5 photos of the same kiosk session",
		Args:  cobra.RangeArgs(1, pipeline.MaxImages),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			when, err := parseWhen(measuredAt)
			if err != nil {
				return err
			}
			group, err := ingest.LoadFiles(args)
			if err != nil {
				return err
			}

			a, p, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Extractor.Extract(ctx, pipeline.Request{ProfileID: p.ID, Images: group.Images})
			if err != nil {
				return err
			}
			d, err := a.Gate.Open(ctx, res)
			if err != nil {
				return err
			}
			if !confirm {
				return printJSON(cmd.OutOrStdout(), map[string]any{"draft": utils.ToPBDraft(d)})
			}

			req := review.ConfirmRequest{MeasuredAt: when}
			if notes != "" {
				req.Notes = &notes
			}
			r, err := a.Gate.Confirm(ctx, p.ID, d.ID, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"reading": utils.ToPBReading(r)})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "accept the draft unseen and save the extracted values as a reading")
	cmd.Flags().StringVar(&measuredAt, "measured-at", "", "when the vitals were taken (RFC 3339 or YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes stored with a confirmed reading")
	return cmd
}
