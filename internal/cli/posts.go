package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/storage"
)

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var (
		limit    int
		postType string
		show     string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)
			ctx := cmd.Context()

			if show != "" {
				p, err := a.Store.Get(ctx, show)
				if err != nil {
					return fmt.Errorf("post %s: %w", show, err)
				}
				printPost(cmd.OutOrStdout(), p)
				return nil
			}

			var filter models.PostType
			if postType != "" {
				if filter, err = models.ParsePostType(postType); err != nil {
					return err
				}
			}
			// Filtering happens after the fetch, so ask for everything.
			fetch := limit
			if filter != "" {
				fetch = 0
			}
			posts, err := a.Store.List(ctx, fetch)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tSCHEDULED\tPREDICTED\tACTUAL\tIMAGE")
			shown := 0
			for _, p := range posts {
				if filter != "" && p.PostType != filter {
					continue
				}
				if limit > 0 && shown == limit {
					break
				}
				shown++
				actual := "-"
				if p.EngagementActual != nil {
					actual = fmt.Sprintf("%.0f", *p.EngagementActual)
				}
				image := "yes"
				if p.ImageIncomplete {
					image = "incomplete"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
					p.ID, p.PostType, p.Status,
					p.ScheduledDate.In(a.Location).Format("2006-01-02 15:04"),
					p.PredictedEngagement, actual, image)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum posts to list (0 for all)")
	cmd.Flags().StringVar(&postType, "type", "", "only list posts of this type")
	cmd.Flags().StringVar(&show, "show", "", "print the full post with this id")
	return cmd
}

func newEngagementCmd(o *rootOptions) *cobra.Command {
	var (
		rec      models.EngagementRecord
		postType string
	)
	cmd := &cobra.Command{
		Use:   "engagement <post-id>",
		Short: "Record observed engagement for a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)
			ctx := cmd.Context()

			rec.PostID = args[0]
			rec.ObservedAt = time.Now()
			if postType != "" {
				if rec.PostType, err = models.ParsePostType(postType); err != nil {
					return err
				}
			}
			// Records may outlive their post, but then the type must be given.
			if _, err := a.Store.Get(ctx, rec.PostID); errors.Is(err, storage.ErrNotFound) && rec.PostType == "" {
				return fmt.Errorf("post %s not found; pass --type to record it anyway", rec.PostID)
			} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			if err := a.Store.AppendEngagement(ctx, rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded engagement score %.0f for %s\n", rec.Score(), rec.PostID)
			return nil
		},
	}
	cmd.Flags().IntVar(&rec.Likes, "likes", 0, "likes")
	cmd.Flags().IntVar(&rec.Comments, "comments", 0, "comments")
	cmd.Flags().IntVar(&rec.Shares, "shares", 0, "shares")
	cmd.Flags().IntVar(&rec.Views, "views", 0, "views")
	cmd.Flags().StringVar(&postType, "type", "", "post type, required when the post no longer exists")
	return cmd
}

func newMarkCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark <post-id> <scheduled|posted|failed>",
		Short: "Move a post through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := models.ParsePostStatus(args[1])
			if err != nil {
				return err
			}

			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)
			ctx := cmd.Context()
			id, now := args[0], time.Now()

			switch status {
			case models.StatusPosted:
				err = a.Scheduler.MarkPosted(ctx, id, now)
			case models.StatusFailed:
				err = a.Scheduler.MarkFailed(ctx, id, now)
			default:
				err = a.Store.UpdateStatus(ctx, id, status, now)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Post %s is now %s\n", id, status)
			return nil
		},
	}
	return cmd
}
