package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/medialens/medialens/internal/search"
	"github.com/medialens/medialens/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		limit     int
		offset    int
		minScore  float64
		mediaType string
		tag       string
		dateFrom  string
		dateTo    string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid search over the indexed library",
		Long: `Search fuses lexical relevance over tags, summaries, descriptions and
transcripts with embedding similarity. Filters narrow candidates before
ranking.`,
		Args: cobra.MinimumNArgs(1),
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

			resp, err := app.service.Search(cmd.Context(), search.Options{
				Query:    strings.Join(args, " "),
				Filters:  filters,
				Limit:    limit,
				Offset:   offset,
				MinScore: minScore,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, searchResponseJSON(resp))
			}

			if resp.LexicalOnly {
				cmd.PrintErrln("note: semantic ranking unavailable, lexical scores only")
			}
			if len(resp.Results) == 0 {
				cmd.Println("no results")
				return nil
			}
			for i, r := range resp.Results {
				cmd.Printf("%2d. %.3f  %s\n", i+1, r.Score, r.Record.Path)
				if r.Record.Summary != nil {
					cmd.Printf("        %s\n", *r.Record.Summary)
				}
				if len(r.Record.Tags) > 0 {
					cmd.Printf("        tags: %s\n", strings.Join(r.Record.Tags, ", "))
				}
			}
			cmd.Printf("%d of %d results\n", len(resp.Results), resp.Total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default from config)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result page offset")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Relevance cutoff override")
	cmd.Flags().StringVar(&mediaType, "type", "", "Filter by media type (video, image)")
	cmd.Flags().StringVar(&tag, "tag", "", "Filter by tag substring")
	cmd.Flags().StringVar(&dateFrom, "from", "", "Filter: processed on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateTo, "to", "", "Filter: processed on or before (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

// searchResultJSON is the wire shape of one hit.
type searchResultJSON struct {
	Record        *store.MediaRecord `json:"record"`
	Score         float64            `json:"score"`
	LexicalScore  float64            `json:"lexical_score"`
	SemanticScore float64            `json:"semantic_score"`
}

func searchResponseJSON(resp *search.Response) map[string]any {
	results := make([]searchResultJSON, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = searchResultJSON{
			Record:        r.Record,
			Score:         r.Score,
			LexicalScore:  r.LexicalScore,
			SemanticScore: r.SemanticScore,
		}
	}
	return map[string]any{
		"results":      results,
		"total":        resp.Total,
		"lexical_only": resp.LexicalOnly,
		"took_ms":      resp.Took.Milliseconds(),
	}
}
