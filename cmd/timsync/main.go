// cmd/timsync/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/runner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// fsys is the filesystem every command works on.
	fsys = afero.NewOsFs()
)

type rootOptions struct {
	dir     string
	verbose bool
}

func versionString() string {
	return fmt.Sprintf("timsync %s (commit: %s, built: %s)", version, commit, date)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "timsync",
		Short: "Synchronize local documents to TIM",
		Long: `timsync publishes a folder of markdown documents, tasks and style themes
to a folder in TIM. Only documents whose rendered content changed are uploaded.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(opts.verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "directory to look for the project in")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd(opts))
	rootCmd.AddCommand(syncCmd(opts))
	rootCmd.AddCommand(targetCmd(opts))
	rootCmd.AddCommand(previewCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))
	return rootCmd
}

func setupLogging(verbose bool) {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// loadProject resolves the project around opts.dir and checks that this
// build may work on it.
func loadProject(opts *rootOptions) (*project.Project, error) {
	proj, err := project.Resolve(fsys, opts.dir)
	if err != nil {
		return nil, err
	}
	if err := proj.Config.Validate(); err != nil {
		return nil, err
	}
	if err := proj.Config.CheckVersion(version); err != nil {
		return nil, err
	}
	return proj, nil
}

func targetByName(cfg *config.Config, arg string) (string, config.Target, error) {
	name, err := runner.ResolveTarget(arg, os.Getenv(runner.TargetEnv), cfg)
	if err != nil {
		return "", config.Target{}, err
	}
	t, err := cfg.Target(name)
	return name, t, err
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	var exitErr *runner.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(runner.ExitCodeFromError(err))
}
