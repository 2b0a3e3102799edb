package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "newsintent",
		Short: "Classify news about a company by business intent and count them per day",
		Long: `newsintent searches the Google News feed for an entity, resolves each story to
its publisher, extracts the article text, labels it with a zero-shot intent
model and prints a date-by-intent count table as CSV.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path (default: $NEWSINTENT_CONFIG)")
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newRunCmd(), newWatchCmd(), newHistoryCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsintent %s (%s)\n", version, commit)
		},
	}
}
