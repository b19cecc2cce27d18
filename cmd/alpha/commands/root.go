package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose   bool
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "alpha",
	Short: "AlphaTerminal - equity ranking pipeline",
	Long: `AlphaTerminal Unified CLI

Ranks listed equities through six stages:
quant filter, macro context, qualitative catalysts (LLM),
sentiment screening, price alerts and the final merge.

Usage:
  go run ./cmd/alpha [command]

Examples:
  go run ./cmd/alpha run --mode strict
  go run ./cmd/alpha api
  go run ./cmd/alpha scheduler start
  go run ./cmd/alpha snapshot top --limit 5`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (json|console)")
}
