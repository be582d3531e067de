// Package cli implements the staffcast command-line interface using Cobra.
// Each subcommand opens the local store and calls one service directly.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "staffcast",
	Short: "staffcast: hourly staffing forecasts",
	Long: `staffcast learns hourly sales demand from observed history and turns it
into staffing recommendations, tracks how accurate they were, and raises
alerts when a published schedule strays from them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
