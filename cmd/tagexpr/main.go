// Package main is the entry point for the tagexpr command.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tagexpr",
		Short:        "Parse, format and evaluate cucumber tag expressions",
		SilenceUsage: true,
	}
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("tagexpr version {{.Version}}\n")

	rootCmd.AddCommand(
		newFormatCmd(),
		newEvalCmd(),
		newTokensCmd(),
		newCheckCmd(),
		newMatchCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
