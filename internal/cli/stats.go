package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/persona-forge/internal/models"
)

func newStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize posting history against the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)
			ctx := cmd.Context()

			posts, err := a.Store.List(ctx, 0)
			if err != nil {
				return err
			}
			cal, err := a.Runner.Load(ctx)
			if err != nil {
				return err
			}
			st := a.Scheduler.Analyze(posts, cal, time.Now())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Posts: %d (draft %d, scheduled %d, posted %d, failed %d)\n",
				st.TotalPosts, st.Drafts, st.ScheduledPosts, st.PostedPosts, st.FailedPosts)

			types := make([]models.PostType, 0, len(st.ByType))
			for t := range st.ByType {
				types = append(types, t)
			}
			sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
			for _, t := range types {
				fmt.Fprintf(out, "  %-12s %d\n", t, st.ByType[t])
			}

			fmt.Fprintf(out, "Post adherence: %.1f%%\n", st.PostAdherence)
			fmt.Fprintf(out, "Slot adherence: %.1f%% (%d missed)\n", st.SlotAdherence, st.MissedSlots)
			if len(st.ContentMix) > 0 {
				fmt.Fprintln(out, "Content mix (recent posts):")
				for _, m := range st.ContentMix {
					fmt.Fprintf(out, "  %-12s %5.1f%% (target %.0f%%, %+.1f)\n", m.PostType, m.Share, m.Target, m.Delta())
				}
			}

			fmt.Fprintln(out, "Suggested frequency:")
			for _, t := range models.PostTypes() {
				if days, ok := st.Frequency[t]; ok && days > 0 {
					fmt.Fprintf(out, "  %-12s every %d days\n", t, days)
				}
			}

			printSlots(out, "Next 7 days", st.Upcoming)
			return nil
		},
	}
}
