package cli

import (
	"fmt"

	"github.com/alexanderramin/sortir/internal/cli/formatter"
	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/preferences"
	"github.com/alexanderramin/sortir/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		prefsPath  string
		reportPath string
		windowDays int
		shortlistK int
		finalN     int
		dryRun     bool
		printMD    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build this week's digest and write the report",
		Long: "Fetches the event dataset, filters and ranks it against your preferences,\n" +
			"asks the model to pick and summarise the best events, and writes the report.\n" +
			"Events starting before the last successful run are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prefsPath == "" {
				prefsPath = app.Config.PreferencesPath
			}
			prefs, err := preferences.Load(prefsPath)
			if err != nil {
				return err
			}

			req := service.RunRequest{
				Trigger:     domain.TriggerBatch,
				Preferences: prefs,
				ReportPath:  app.Config.ReportPath,
				DryRun:      dryRun,
			}
			if reportPath != "" {
				req.ReportPath = reportPath
			}
			flags := cmd.Flags()
			req.WindowDays = changedInt(flags, "window-days", windowDays)
			req.ShortlistK = changedInt(flags, "shortlist", shortlistK)
			req.FinalN = changedInt(flags, "final-n", finalN)

			res, err := runPipeline(cmd.Context(), app, req, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if printMD {
				fmt.Fprintln(out, res.Markdown)
			}
			fmt.Fprint(out, formatter.FormatRunSummary(res, dryRun))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&prefsPath, "prefs", "", "Preferences file (default from config)")
	f.StringVar(&reportPath, "out", "", "Report path (default from config)")
	f.IntVar(&windowDays, "window-days", 0, "Days ahead to consider")
	f.IntVar(&shortlistK, "shortlist", 0, "Candidates sent to the judge")
	f.IntVar(&finalN, "final-n", 0, "Events in the digest")
	f.BoolVar(&dryRun, "dry-run", false, "Do not record the run or advance the last-run marker")
	f.BoolVar(&printMD, "print", false, "Also print the Markdown digest")

	return cmd
}

// changedInt returns &v only when the flag was set explicitly, so unset
// sizes fall back to the configured defaults.
func changedInt(flags *pflag.FlagSet, name string, v int) *int {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}
