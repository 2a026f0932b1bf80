package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/persona-forge/internal/models"
)

func newPlanCmd(o *rootOptions) *cobra.Command {
	var reconfigure bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the posting calendar",
		Long:  "Show the posting calendar. With --reconfigure the plan is rebuilt from the cadence in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			cal, err := a.Runner.Load(ctx)
			if err != nil {
				return err
			}
			if reconfigure {
				cal, err = a.Scheduler.Reconfigure(cal, a.Cadence(), time.Now())
				if err != nil {
					return err
				}
			}
			// Saving pins the horizon start on first use.
			if err := a.Store.SaveCalendar(ctx, cal); err != nil {
				return err
			}
			printCalendar(cmd.OutOrStdout(), cal, a.Location)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reconfigure, "reconfigure", false, "rebuild the plan from the configured cadence")
	return cmd
}

func printCalendar(out io.Writer, cal models.Calendar, loc *time.Location) {
	fmt.Fprintf(out, "Cycle %d: %s to %s\n\n", cal.Cycle,
		cal.Plan.Start.In(loc).Format("2006-01-02"), cal.Plan.End().In(loc).Format("2006-01-02"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tPOST AT\tTIER\tSTATE\tPOST\tNOTE")
	for _, sl := range cal.Slots {
		note := ""
		if sl.MakeupFor != 0 {
			note = fmt.Sprintf("make-up for day %d", sl.MakeupFor)
		} else if sl.LastErr != "" {
			note = sl.LastErr
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			sl.Due.Day,
			sl.Due.PostAt.In(loc).Format("Mon 2006-01-02 15:04"),
			sl.Due.Tier, sl.State, shortID(sl.PostID), note)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
