package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vitals-tracker/internal/async"
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/export"
	"github.com/joseph-ayodele/vitals-tracker/internal/ingest"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
	"github.com/joseph-ayodele/vitals-tracker/internal/review"
)

// scanOutcome is one line of the scan report.
type scanOutcome struct {
	Group     string `json:"group"`
	Images    int    `json:"images"`
	DraftID   string `json:"draft_id,omitempty"`
	ReadingID string `json:"reading_id,omitempty"`
	JobID     string `json:"extraction_job_id,omitempty"`
	Code      string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newScanCmd(c *cli) *cobra.Command {
	var (
		confirm bool
		workers int
		out     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "Extract every photo group under a directory in parallel",
		Long: "Each photo directly under DIR is one request; the photos of each subdirectory form one request\n" +
			"(split into chunks of 5). Results are open drafts for review. With --confirm the operator accepts\n" +
			"every draft unseen and each one is saved as a reading.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := args[0]
			groups, stats, failed, err := ingest.ScanDirectory(ctx, dir, true)
			if err != nil {
				return err
			}
			for _, f := range failed {
				c.logger.Warn("scan.file.skipped", "path", f.Path, "error", f.Err)
			}
			c.logger.Info("scan complete", "scanned", stats.Scanned, "matched", stats.Matched, "groups", stats.Groups, "failed", stats.Failed)
			if len(groups) == 0 {
				return fmt.Errorf("no photos found under %s", dir)
			}

			a, p, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				mu       sync.Mutex
				outcomes []scanOutcome
			)
			handle := func(ctx context.Context, job async.Job, res *pipeline.Result, err error) {
				o := scanOutcome{Group: job.Label, Images: len(job.Request.Images)}
				if res != nil {
					o.JobID = res.JobID.String()
				}
				if err == nil {
					o, err = settle(ctx, a.Gate, res, confirm, o)
				}
				if err != nil {
					o.Code = common.ErrorCode(err)
					o.Error = common.UserMessage(err)
				}
				mu.Lock()
				outcomes = append(outcomes, o)
				mu.Unlock()
			}

			queue := async.NewProcessorQueue(a.Extractor, c.logger,
				async.WithWorkers(workers),
				async.WithQueueSize(len(groups)),
				async.WithProcessTimeout(timeout),
				async.WithHandler(handle),
			)
			for _, g := range groups {
				job := async.Job{Label: g.Name, Request: pipeline.Request{ProfileID: p.ID, Images: g.Images}}
				if err := queue.Enqueue(ctx, job); err != nil {
					queue.Shutdown(context.Background())
					return err
				}
			}
			queue.Shutdown(ctx)

			mu.Lock()
			defer mu.Unlock()
			sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Group < outcomes[j].Group })
			failures := 0
			for _, o := range outcomes {
				if o.Error != "" {
					failures++
				}
			}
			report := map[string]any{"profile_id": p.ID.String(), "results": outcomes, "failures": failures}

			if confirm {
				if out == "" {
					out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "vitals.xlsx")
				}
				xlsx, err := a.Export.ExportReadingsXLSX(ctx, export.Request{ProfileID: p.ID})
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, xlsx, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				report["output"] = out
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "accept every draft unseen: save each successful extraction as a reading and write an XLSX export")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel extraction workers")
	cmd.Flags().StringVar(&out, "out", "", "XLSX path for --confirm (default: vitals.xlsx next to DIR)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "per-request processing timeout")
	return cmd
}

// settle opens a draft for res. With confirm the operator has accepted it
// unseen and it is persisted measured now.
func settle(ctx context.Context, gate *review.Gate, res *pipeline.Result, confirm bool, o scanOutcome) (scanOutcome, error) {
	d, err := gate.Open(ctx, res)
	if err != nil {
		return o, err
	}
	o.DraftID = d.ID.String()
	if !confirm {
		return o, nil
	}
	r, err := gate.Confirm(ctx, res.ProfileID, d.ID, review.ConfirmRequest{MeasuredAt: time.Now().UTC()})
	if err != nil {
		return o, err
	}
	o.ReadingID = r.ID.String()
	return o, nil
}
