// Package cli is the forge command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/xaenox/persona-forge/internal/app"
	"github.com/xaenox/persona-forge/pkg/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "forge",
		Short:         "Persona Forge: scheduled LinkedIn drafts from a local model",
		Long:          "Persona Forge drafts posts with a local language model and keeps a 90-day mini/main/capstone posting cadence.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(opts),
		newPlanCmd(opts),
		newTickCmd(opts),
		newRunCmd(opts),
		newGenerateCmd(opts),
		newHistoryCmd(opts),
		newEngagementCmd(opts),
		newMarkCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// open loads the configuration and wires the application. Release it with
// closeApp.
func (o *rootOptions) open() (*app.App, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func closeApp(a *app.App) {
	if a == nil {
		return
	}
	_ = a.Close()
	_ = a.Logger.Sync()
}
