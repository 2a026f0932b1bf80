package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/persona-forge/internal/app"
	"github.com/xaenox/persona-forge/internal/metrics"
	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/scheduler"
	"github.com/xaenox/persona-forge/internal/storage"
	"go.uber.org/zap"
)

func newTickCmd(o *rootOptions) *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run the scheduler once: mark missed slots and draft what is due soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)

			_, rep, err := a.Runner.RunOnce(cmd.Context())
			printReport(cmd.OutOrStdout(), rep)
			if showMetrics {
				fmt.Fprintln(cmd.OutOrStdout())
				if mErr := metrics.WriteSummary(cmd.OutOrStdout()); mErr != nil {
					a.Logger.Warn("Failed to gather metrics", zap.Error(mErr))
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print pipeline counters after the tick")
	return cmd
}

func newRunCmd(o *rootOptions) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep ticking on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)

			unlock, err := storage.NewFileLock(runLockPath(a)).TryLock()
			if errors.Is(err, storage.ErrLocked) {
				return fmt.Errorf("another forge run is active: %w", err)
			}
			if err != nil {
				return err
			}
			defer unlock()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if now {
				if _, rep, err := a.Runner.RunOnce(ctx); err != nil {
					a.Logger.Error("Initial tick failed", zap.Error(err))
				} else {
					printReport(cmd.OutOrStdout(), rep)
				}
			}
			if err := a.Runner.Start(ctx, a.Config.Scheduler.Cron); err != nil {
				return err
			}
			a.Logger.Info("Waiting for next tick", zap.Time("next", a.Runner.Next()))

			<-ctx.Done()
			a.Runner.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "tick once before waiting for the schedule")
	return cmd
}

func runLockPath(a *app.App) string {
	if a.Config.Database.Driver == "sqlite" {
		return a.Config.Database.Path + ".run.lock"
	}
	return filepath.Join(os.TempDir(), "persona-forge.run.lock")
}

func printReport(out io.Writer, rep scheduler.Report) {
	if rep.Skipped {
		fmt.Fprintln(out, "Another tick is in progress; nothing done.")
		return
	}
	if rep.RolledOver {
		fmt.Fprintf(out, "Started cycle %d.\n", rep.Cycle)
	}
	fmt.Fprintf(out, "Requested %d, generated %d, failed %d.\n", rep.Requested, len(rep.Generated), len(rep.Failed))
	printSlots(out, "Generated", rep.Generated)
	printSlots(out, "Failed", rep.Failed)
	printSlots(out, "Missed", rep.Missed)
	printSlots(out, "Rescheduled", rep.Rescheduled)
	printSlots(out, "Dropped", rep.Dropped)
}

func printSlots(out io.Writer, title string, slots []models.Slot) {
	if len(slots) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, sl := range slots {
		line := fmt.Sprintf("  %-8s day %-3d %s", sl.Due.Tier, sl.Due.Day, sl.Due.PostAt.Format("2006-01-02 15:04"))
		if sl.PostID != "" {
			line += "  post " + sl.PostID
		}
		if sl.LastErr != "" {
			line += "  (" + sl.LastErr + ")"
		}
		fmt.Fprintln(out, line)
	}
}
