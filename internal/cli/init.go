package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xaenox/persona-forge/pkg/config"
)

func newInitCmd(o *rootOptions) *cobra.Command {
	var (
		profile config.ProfileConfig
		skills  string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with your profile and the default cadence",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(o.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", o.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			for _, s := range strings.Split(skills, ",") {
				if s = strings.TrimSpace(s); s != "" {
					profile.Skills = append(profile.Skills, s)
				}
			}
			cfg.Profile = profile
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(o.configPath, cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", o.configPath)
			if profile.Name == "" || profile.Industry == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Set profile.name and profile.industry before generating posts.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profile.Name, "name", "", "your name")
	cmd.Flags().StringVar(&profile.Industry, "industry", "", "your industry")
	cmd.Flags().StringVar(&profile.ExperienceLevel, "experience", "", "experience level")
	cmd.Flags().StringVar(&profile.CurrentWork, "current-work", "", "what you are working on")
	cmd.Flags().StringVar(&skills, "skills", "", "comma-separated skills")
	cmd.Flags().StringVar(&profile.Goals, "goals", "", "career goals")
	cmd.Flags().StringVar(&profile.Tone, "tone", "", "preferred tone (professional, conversational, ...)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
