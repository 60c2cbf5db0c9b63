package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/medialens/medialens/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var skipInitialScan bool

	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Keep the index current as the library changes",
		Long: `Watch runs an initial scan of the library (unless --no-scan), then
follows file events: new and changed media are reprocessed, deleted
files are dropped from the index. Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			root := app.cfg.Paths.Library
			if len(args) == 1 {
				root = args[0]
			}

			if !skipInitialScan {
				summary, err := app.service.ProcessDirectory(cmd.Context(), root)
				if err != nil {
					return err
				}
				cmd.Printf("initial scan: indexed %d, skipped %d, failed %d\n",
					summary.Indexed, summary.Skipped, summary.Failed)
			}

			w, err := watcher.New(root, app.coord, app.store, app.vectors,
				app.cfg.Index.WatchDebounce.Std(), app.logger)
			if err != nil {
				return err
			}

			err = w.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&skipInitialScan, "no-scan", false, "Skip the initial library scan")
	return cmd
}
