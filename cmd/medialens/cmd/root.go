// Package cmd provides the CLI commands for MediaLens.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medialens/medialens/pkg/version"
)

var (
	configPath string
	dataDir    string
	logLevel   string
	quiet      bool
)

// NewRootCmd creates the root command for the medialens CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medialens",
		Short: "Media indexing and hybrid retrieval engine",
		Long: `MediaLens indexes a local media library (video and images) and serves
hybrid lexical + semantic search over the derived tags, summaries, and
transcripts. Unchanged files are skipped by fingerprint; searches fuse
BM25 relevance with embedding similarity.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("medialens version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML); defaults apply when absent")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory override")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output to stderr")

	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
