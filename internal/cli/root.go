package cli

import (
	"context"
	"time"

	"github.com/alexanderramin/sortir/internal/config"
	"github.com/alexanderramin/sortir/internal/service"
	"github.com/spf13/cobra"
)

// App holds the configuration and services used by CLI commands.
type App struct {
	Config     *config.Config
	Newsletter service.NewsletterService
	History    service.HistoryService

	// Serve runs the HTTP API on addr until ctx is cancelled.
	Serve func(ctx context.Context, addr string) error

	// IsInteractive reports whether stdin is a terminal. Nil means no.
	IsInteractive func() bool
	// Now defaults to time.Now.
	Now func() time.Time
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// NewRootCmd creates the top-level "sortir" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "sortir",
		Short:         "Weekly digest of Montréal public events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String(configFlag, "", "YAML config file (default $SORTIR_CONFIG)")

	root.AddCommand(
		newRunCmd(app),
		newServeCmd(app),
		newPrefsCmd(app),
		newHistoryCmd(app),
	)

	return root
}
