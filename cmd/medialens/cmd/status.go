package cmd

import (
	"github.com/spf13/cobra"

	"github.com/medialens/medialens/internal/store"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			st, err := app.service.Status(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, map[string]any{
					"records":      st.Records,
					"vector_count": st.VectorCount,
					"in_flight":    st.InFlight,
				})
			}

			cmd.Printf("indexed:    %d\n", st.Records[store.StatusIndexed])
			cmd.Printf("pending:    %d\n", st.Records[store.StatusPending])
			cmd.Printf("processing: %d\n", st.Records[store.StatusProcessing])
			cmd.Printf("failed:     %d\n", st.Records[store.StatusFailed])
			cmd.Printf("vectors:    %d\n", st.VectorCount)
			cmd.Printf("in flight:  %d\n", st.InFlight)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
