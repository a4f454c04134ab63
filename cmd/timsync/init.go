package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/tui"
)

func initCmd(_ *rootOptions) *cobra.Command {
	var force, noPrompt bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a TIMSync project",
		Long: `Create .timsync/config.toml in the given directory (default: current
directory), add .timsync to .gitignore and write a default _config.yml and
.timsyncignore when they are missing.

On a terminal the default sync target is asked for interactively.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			var target *config.Target
			if !noPrompt && tui.Attended() {
				form := tui.NewTargetForm(config.DefaultTarget, config.Target{}, false)
				if err := form.Run(); err != nil {
					return fmt.Errorf("target prompt: %w", err)
				}
				t := form.Target()
				target = &t
			}

			proj, err := project.Init(fsys, dir, project.InitOptions{Force: force, Target: target})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Tick("Initialized TIMSync project in "+proj.Root))
			if target == nil {
				fmt.Fprintln(cmd.OutOrStdout(), tui.Info("Add a sync target with `timsync target add default`."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "recreate the configuration of an initialized project")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "do not ask for a sync target")
	return cmd
}
