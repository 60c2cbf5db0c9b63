package cmd

import (
	"github.com/spf13/cobra"

	"github.com/medialens/medialens/internal/store"
)

func newListCmd() *cobra.Command {
	var (
		sortKey   string
		limit     int
		offset    int
		mediaType string
		tag       string
		dateFrom  string
		dateTo    string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse indexed records",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(mediaType, tag, dateFrom, dateTo)
			if err != nil {
				return err
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			resp, err := app.service.List(cmd.Context(), filters, store.Sort(sortKey), limit, offset)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, map[string]any{
					"records": resp.Records,
					"total":   resp.Total,
					"limit":   resp.Limit,
					"offset":  resp.Offset,
				})
			}

			for _, rec := range resp.Records {
				printRecordLine(cmd, rec)
			}
			cmd.Printf("%d-%d of %d records\n",
				resp.Offset+1, resp.Offset+len(resp.Records), resp.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&sortKey, "sort", "", "Sort key: date_desc, date_asc, duration_desc, duration_asc")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Page size (default 50)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.Flags().StringVar(&mediaType, "type", "", "Filter by media type (video, image)")
	cmd.Flags().StringVar(&tag, "tag", "", "Filter by tag substring")
	cmd.Flags().StringVar(&dateFrom, "from", "", "Filter: processed on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateTo, "to", "", "Filter: processed on or before (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
