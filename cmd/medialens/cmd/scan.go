package cmd

import (
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Index every media file under a directory",
		Long: `Scan walks the directory (default: the configured library root),
submits every recognized media file, and reports how many were indexed,
skipped as unchanged, or failed.`,
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

			summary, err := app.service.ProcessDirectory(cmd.Context(), root)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, map[string]any{
					"indexed": summary.Indexed,
					"skipped": summary.Skipped,
					"failed":  summary.Failed,
					"errors":  len(summary.Errors),
				})
			}

			cmd.Printf("indexed %d, skipped %d, failed %d\n",
				summary.Indexed, summary.Skipped, summary.Failed)
			for _, pe := range summary.Errors {
				cmd.Printf("  error: %s: %v\n", pe.Path, pe.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
