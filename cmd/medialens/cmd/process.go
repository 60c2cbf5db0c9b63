package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medialens/medialens/internal/store"
)

func newProcessCmd() *cobra.Command {
	var (
		force  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Index one media file (skipped when unchanged)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			rec, err := app.service.Process(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, rec)
			}
			printRecord(cmd, rec)
			if rec.Status == store.StatusFailed {
				return fmt.Errorf("processing failed: %s", rec.FailureReason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reprocess even when the fingerprint is unchanged")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
