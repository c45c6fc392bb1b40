package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vitals-tracker/internal/app"
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/profiles"
)

// cli carries the root flags and the wiring shared by every subcommand.
type cli struct {
	inmem     bool
	profile   string
	uploadDir string

	logger *slog.Logger
	cfg    *common.Config
	opts   app.Options
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cli{}).ExecuteContext(ctx); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "vitals-batch",
		Short:         "Extract, review and export kiosk vitals from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().BoolVar(&c.inmem, "inmem", false, "use an in-memory SQLite database")
	root.PersistentFlags().StringVar(&c.profile, "profile", "Local Batch", "profile name, created on first use")
	root.PersistentFlags().StringVar(&c.uploadDir, "upload-dir", "", "archive directory for original photos (overrides UPLOAD_DIR)")

	root.AddCommand(
		newExtractCmd(c),
		newScanCmd(c),
		newAddCmd(c),
		newExportCmd(c),
	)
	return root
}

func (c *cli) setup(stderr io.Writer) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if c.inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ""
	}
	if c.uploadDir != "" {
		cfg.Storage.UploadDir = c.uploadDir
	}
	c.cfg = cfg
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	return nil
}

// open wires the services and resolves the working profile.
func (c *cli) open(ctx context.Context, offline bool) (*app.App, *entity.Profile, error) {
	opts := c.opts
	opts.Offline = offline && opts.Recognizer == nil
	a, err := app.Build(ctx, c.cfg, c.logger, opts)
	if err != nil {
		return nil, nil, err
	}
	p, err := a.Profiles.CreateProfile(ctx, profiles.CreateProfileRequest{Name: c.profile})
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	c.logger.Info("using profile", "id", p.ID, "name", p.Name)
	return a, p, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseWhen accepts RFC 3339 or YYYY-MM-DD; empty means now.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, use RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
