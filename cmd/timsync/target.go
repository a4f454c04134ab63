package main

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/treesync"
	"github.com/JYU-DI/timsync/internal/tui"
)

func targetCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage sync targets",
		Long:  "Add, list and remove the TIM folders the project can be synchronized to.",
	}
	cmd.AddCommand(targetAddCmd(root))
	cmd.AddCommand(targetListCmd(root))
	cmd.AddCommand(targetRemoveCmd(root))
	return cmd
}

type targetAddOptions struct {
	target   config.Target
	noPrompt bool
	noVerify bool
	force    bool
}

func targetAddCmd(root *rootOptions) *cobra.Command {
	opts := &targetAddOptions{}
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a sync target",
		Long: `Add a sync target. Missing values are asked for on a terminal. Unless
--no-verify is given, the host is contacted, the credentials are checked and
the folder must exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := project.Resolve(fsys, root.dir)
			if err != nil {
				return err
			}
			name := args[0]
			if _, exists := proj.Config.Targets[name]; exists && !opts.force {
				return fmt.Errorf("target %s already exists, use --force to replace it", name)
			}

			t := opts.target
			if !opts.noPrompt && tui.Attended() && (t.FolderRoot == "" || t.Username == "" || t.Password == "") {
				form := tui.NewTargetForm(name, t, false)
				if err := form.Run(); err != nil {
					return fmt.Errorf("target prompt: %w", err)
				}
				t = form.Target()
			}
			if t.Host == "" {
				t.Host = config.DefaultHost
			}
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%w: target %s: %v", config.ErrInvalid, name, err)
			}

			if !opts.noVerify {
				if err := verifyTarget(cmd.Context(), proj.Config, t); err != nil {
					return err
				}
			}

			proj.Config.SetTarget(name, t)
			if err := proj.SaveConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Tick(fmt.Sprintf("Added sync target %s (%s/%s)", name, t.Host, t.FolderRoot)))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.target.Host, "host", "", "TIM host (default: "+config.DefaultHost+")")
	cmd.Flags().StringVar(&opts.target.FolderRoot, "folder", "", "folder in TIM to sync to")
	cmd.Flags().StringVar(&opts.target.Username, "username", "", "TIM username")
	cmd.Flags().StringVar(&opts.target.Password, "password", "", "TIM password stored in the config")
	cmd.Flags().StringVar(&opts.target.PasswordSource, "password-source", "", "where the password comes from: config or env")
	cmd.Flags().StringVar(&opts.target.PasswordEnv, "password-env", "", "environment variable holding the password (default: "+config.DefaultPasswordEnv+")")
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "never ask for missing values")
	cmd.Flags().BoolVar(&opts.noVerify, "no-verify", false, "do not contact TIM")
	cmd.Flags().BoolVar(&opts.force, "force", false, "replace an existing target")
	return cmd
}

// verifyTarget logs in and checks that the target folder exists.
func verifyTarget(ctx context.Context, cfg *config.Config, t config.Target) error {
	password, err := config.ResolvePassword(t)
	if err != nil {
		return err
	}
	client, err := newStore(ctx, cfg, t)
	if err != nil {
		return fmt.Errorf("could not connect to TIM: %w", err)
	}
	if err := client.Login(ctx, t.Username, password); err != nil {
		return fmt.Errorf("could not log in to TIM: %w", err)
	}
	return treesync.New(client, t.FolderRoot, treesync.WithHost(t.Host)).VerifyRoot(ctx)
}

func targetListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sync targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := project.Resolve(fsys, root.dir)
			if err != nil {
				return err
			}
			if len(proj.Config.Targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sync targets configured.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tHOST\tFOLDER\tUSERNAME")
			names := make([]string, 0, len(proj.Config.Targets))
			for name := range proj.Config.Targets {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				t := proj.Config.Targets[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, t.Host, t.FolderRoot, t.Username)
			}
			return w.Flush()
		},
	}
}

func targetRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a sync target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := project.Resolve(fsys, root.dir)
			if err != nil {
				return err
			}
			if err := proj.Config.RemoveTarget(args[0]); err != nil {
				return err
			}
			if err := proj.SaveConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Tick("Removed sync target "+args[0]))
			return nil
		},
	}
}
