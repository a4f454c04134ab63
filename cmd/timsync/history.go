package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/store"
)

func historyCmd(root *rootOptions) *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		Long:  "List the sync runs recorded in .timsync/history.db, newest first. With --run the documents of one run are shown.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := project.Resolve(fsys, root.dir)
			if err != nil {
				return err
			}
			s, err := store.NewStore(proj.HistoryPath())
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer s.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if runID != "" {
				docs, err := s.RunDocuments(runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "PATH\tID\tACTION")
				for _, d := range docs {
					fmt.Fprintf(w, "%s\t%d\t%s\n", d.Path, d.RemoteID, d.Action)
				}
				return w.Flush()
			}

			runs, err := s.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sync runs recorded.")
				return nil
			}
			fmt.Fprintln(w, "RUN\tTARGET\tSTARTED\tDURATION\tSTATUS\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Target,
					r.StartedAt.Local().Format(time.DateTime),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
					r.Status, r.Error,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the documents of one run")
	return cmd
}
