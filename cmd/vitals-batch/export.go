package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/export"
	"github.com/joseph-ayodele/vitals-tracker/internal/utils"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		out     string
		fromStr string
		toStr   string
		bp      string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the profile's readings to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			req := export.Request{}
			if fromStr != "" {
				t, err := utils.ParseYMD(fromStr)
				if err != nil {
					return fmt.Errorf("invalid --from date format, use YYYY-MM-DD: %w", err)
				}
				req.From = &t
			}
			if toStr != "" {
				t, err := utils.ParseYMD(toStr)
				if err != nil {
					return fmt.Errorf("invalid --to date format, use YYYY-MM-DD: %w", err)
				}
				req.To = &t
			}
			if bp != "" {
				cat, ok := constants.CanonicalizeBP(bp)
				if !ok {
					return fmt.Errorf("unknown --bp %q, use one of %v", bp, constants.BPCategoriesAsStringSlice())
				}
				req.BPCategory = cat
			}

			a, p, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			req.ProfileID = p.ID
			xlsx, err := a.Export.ExportReadingsXLSX(ctx, req)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, xlsx, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(xlsx))
			return err
		},
	}
	cmd.Flags().StringVar(&out, "out", "vitals.xlsx", "output XLSX file path")
	cmd.Flags().StringVar(&fromStr, "from", "", "from date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "to date YYYY-MM-DD")
	cmd.Flags().StringVar(&bp, "bp", "", "only readings in this blood pressure class (e.g. \"stage 1\")")
	return cmd
}
