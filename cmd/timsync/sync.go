package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/output"
	"github.com/JYU-DI/timsync/internal/pipeline"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/runner"
	"github.com/JYU-DI/timsync/internal/store"
	"github.com/JYU-DI/timsync/internal/tim"
	"github.com/JYU-DI/timsync/internal/watch"
)

type syncOptions struct {
	watch       bool
	debounce    time.Duration
	output      string
	concurrency int
}

// newStore builds the remote store for a target. Tests replace it.
var newStore = func(ctx context.Context, cfg *config.Config, t config.Target) (tim.Store, error) {
	return tim.NewClient(ctx, t.Host, tim.Options{
		RetryMax:          cfg.Sync.RetryMax,
		RequestsPerSecond: cfg.Sync.RequestsPerSecond,
		Timeout:           cfg.Sync.Timeout.Duration,
	})
}

func syncCmd(root *rootOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync [target]",
		Short: "Synchronize the project with a sync target",
		Long: `Render every document of the project and upload the changed ones to the
sync target (default: "default"). With --watch the project is synchronized
again whenever a file changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := loadProject(root)
			if err != nil {
				return err
			}
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			name, target, err := targetByName(proj.Config, arg)
			if err != nil {
				return err
			}
			formatter, err := output.New(opts.output)
			if err != nil {
				return err
			}

			var recorder runner.Recorder
			history, err := store.NewStore(proj.HistoryPath())
			if err != nil {
				log.WithError(err).Warn("Sync history is unavailable")
			} else {
				defer history.Close()
				recorder = history
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			log.Infof("Syncing to %s (%s)...", name, target.Host)
			once := func(ctx context.Context) error {
				return syncOnce(ctx, cmd, proj, name, target, opts, formatter, recorder)
			}
			err = once(ctx)
			if !opts.watch {
				return err
			}
			log.Info("Watching for changes, press Ctrl+C to stop")
			return watch.Run(ctx, proj.Root, opts.debounce, once)
		},
	}
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "keep running and sync on every change")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "quiet period before a watch sync")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text, markdown, json")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "concurrent remote calls (default: [sync] concurrency)")
	return cmd
}

func syncOnce(ctx context.Context, cmd *cobra.Command, proj *project.Project, name string, target config.Target,
	opts *syncOptions, formatter output.Formatter, recorder runner.Recorder) error {
	run := func(ctx context.Context) (*pipeline.Report, error) {
		client, err := newStore(ctx, proj.Config, target)
		if err != nil {
			return nil, fmt.Errorf("could not connect to TIM: %w", err)
		}
		return pipeline.New(client, proj, target, pipeline.WithConcurrency(opts.concurrency)).Run(ctx)
	}

	result, runErr := runner.NewSyncRunner(run, recorder).Run(ctx, name)
	out, err := formatter.Format(result)
	if err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	if runErr != nil {
		log.WithError(runErr).Debug("sync failed")
		return &runner.ExitError{Code: runner.ExitCodeFromError(runErr)}
	}
	return nil
}
