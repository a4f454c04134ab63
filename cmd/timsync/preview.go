package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/pipeline"
	"github.com/JYU-DI/timsync/internal/tui"
)

func previewCmd(root *rootOptions) *cobra.Command {
	var raw bool
	var targetName string
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Render one document without uploading it",
		Long: `Render the document produced from a project file the way sync would and
print it. Remote ids are not known offline and render as 0. The markup is
shown styled on a terminal (without colors when NO_COLOR is set) and as is
with --raw or when piped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := loadProject(root)
			if err != nil {
				return err
			}
			_, target, err := targetByName(proj.Config, targetName)
			if err != nil {
				log.WithError(err).Debug("preview without a configured target")
				target = config.Target{Host: config.DefaultHost, FolderRoot: "preview"}
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			doc, prepared, err := pipeline.Preview(proj, target, path)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"path": doc.Path, "title": doc.Title, "assets": len(prepared.Uploads)}).Debug("preview: rendered")

			out := prepared.Markup
			if !raw && tui.Attended() {
				r, err := tui.NewPreviewRenderer(tui.Width(100), os.Getenv("NO_COLOR") == "")
				if err != nil {
					return err
				}
				if out, err = r.Render(prepared.Markup); err != nil {
					return fmt.Errorf("render preview: %w", err)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the markup without styling")
	cmd.Flags().StringVar(&targetName, "target", "", "sync target used for links (default: default)")
	return cmd
}
