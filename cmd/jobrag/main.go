package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "jobrag",
	Short:   "Index and query job postings with retrieval-augmented generation",
	Version: version,
	Long: `jobrag maintains a local vector index of job postings and answers
questions over it: semantic chunking, two-stage retrieval, and a
self-correcting query loop.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// A local .env is convenient for API keys during development; missing is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
