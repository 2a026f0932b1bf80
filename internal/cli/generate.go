package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/scheduler"
)

func newGenerateCmd(o *rootOptions) *cobra.Command {
	var (
		style  string
		custom string
		topic  string
		date   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "generate <mini|main|capstone|insight|achievement|general>",
		Short: "Draft one post now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := models.ParsePostType(args[0])
			if err != nil {
				return err
			}

			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a)

			target := time.Now().In(a.Location)
			if date != "" {
				d, err := time.ParseInLocation("2006-01-02", date, a.Location)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
				target = scheduler.PostTime(d)
			}
			if topic == "" {
				topic = scheduler.TopicHint(pt, a.Profile)
			}

			res, err := a.Coordinator.Generate(cmd.Context(), models.PostRequest{
				PostType:     pt,
				TargetDate:   target,
				Profile:      a.Profile,
				Style:        models.ImageStyle(strings.ToLower(style)),
				CustomPrompt: custom,
				TopicHint:    topic,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Post)
			}
			printPost(cmd.OutOrStdout(), res.Post)
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "", "image style: professional, corporate, modern, minimal, branded")
	cmd.Flags().StringVar(&custom, "prompt", "", "custom request (general posts only)")
	cmd.Flags().StringVar(&topic, "topic", "", "what the post should be about")
	cmd.Flags().StringVar(&date, "date", "", "target date, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the post as JSON")
	return cmd
}

func printPost(out io.Writer, p *models.GeneratedPost) {
	fmt.Fprintf(out, "Post %s (%s, %s)\n", p.ID, p.PostType, p.Status)
	fmt.Fprintf(out, "Scheduled for %s\n\n", p.ScheduledDate.Format("Mon 2006-01-02 15:04"))
	fmt.Fprintln(out, p.BodyText)
	if len(p.Hashtags) > 0 {
		fmt.Fprintf(out, "\n%s\n", strings.Join(p.Hashtags, " "))
	}
	fmt.Fprintf(out, "\nPredicted engagement: %.2f\n", p.PredictedEngagement)
	switch {
	case p.ImageIncomplete:
		fmt.Fprintln(out, "Image: incomplete (text only)")
	case p.Image != nil:
		fmt.Fprintf(out, "Image: %s, %s, %dx%d, %d overlay(s)\n",
			p.Image.Layout, p.Image.Style, p.Image.Width, p.Image.Height, len(p.Image.Overlays))
	}
}
