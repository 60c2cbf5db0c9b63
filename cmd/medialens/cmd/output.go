package cmd

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lenserr "github.com/medialens/medialens/internal/errors"
	"github.com/medialens/medialens/internal/store"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecord renders the full record, one field per line.
func printRecord(cmd *cobra.Command, rec *store.MediaRecord) {
	cmd.Printf("id:       %s\n", rec.ID)
	cmd.Printf("path:     %s\n", rec.Path)
	cmd.Printf("type:     %s\n", rec.MediaType)
	cmd.Printf("status:   %s\n", rec.Status)
	if rec.Status == store.StatusFailed && rec.FailureReason != "" {
		cmd.Printf("reason:   %s\n", rec.FailureReason)
	}
	if rec.DurationSeconds > 0 {
		cmd.Printf("duration: %.1fs\n", rec.DurationSeconds)
	}
	if rec.Resolution != "" {
		cmd.Printf("res:      %s\n", rec.Resolution)
	}
	if len(rec.Tags) > 0 {
		cmd.Printf("tags:     %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Summary != nil {
		cmd.Printf("summary:  %s\n", *rec.Summary)
	}
	if !rec.ProcessedAt.IsZero() {
		cmd.Printf("indexed:  %s\n", rec.ProcessedAt.Format(time.RFC3339))
	}
}

// printRecordLine renders the one-line list form.
func printRecordLine(cmd *cobra.Command, rec *store.MediaRecord) {
	when := "-"
	if !rec.ProcessedAt.IsZero() {
		when = rec.ProcessedAt.Format("2006-01-02")
	}
	cmd.Printf("%-5s %-9s %s  %s\n", rec.MediaType, rec.Status, when, rec.Path)
}

// parseFilters turns the shared filter flags into store.Filters.
// Dates are whole days; --to is extended to the end of its day so the
// range stays inclusive.
func parseFilters(mediaType, tag, dateFrom, dateTo string) (store.Filters, error) {
	var f store.Filters
	f.MediaType = store.MediaType(mediaType)
	f.Tag = tag

	if dateFrom != "" {
		t, err := time.Parse("2006-01-02", dateFrom)
		if err != nil {
			return f, lenserr.ConfigError("invalid --from date, want YYYY-MM-DD", err)
		}
		f.DateFrom = t
	}
	if dateTo != "" {
		t, err := time.Parse("2006-01-02", dateTo)
		if err != nil {
			return f, lenserr.ConfigError("invalid --to date, want YYYY-MM-DD", err)
		}
		f.DateTo = t.Add(24*time.Hour - time.Second)
	}
	return f, nil
}
