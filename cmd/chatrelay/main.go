// Package main provides the chatrelay CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hikawa/chatrelay/cli"
)

var (
	provider    string
	dbPath      string
	metricsAddr string
	verbose     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Context-augmented LLM chat relay",
		Long: `chatrelay relays chat messages through an LLM completion pipeline:
search-aware context augmentation, bounded history, retried completions
with a fallback model tier, and disclaimer sanitization.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(chatCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session through the full pipeline.

The session keeps bounded per-channel history, decides per message
whether a web search is warranted, and injects search results into the
prompt before completion.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:    provider,
				DBPath:      dbPath,
				MetricsAddr: metricsAddr,
				Verbose:     verbose,
			}
			return cli.Chat(context.Background(), opts)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path for durable history (default: in-memory)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")

	return cmd
}
