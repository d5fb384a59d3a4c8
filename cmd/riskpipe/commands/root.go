package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riskpipe",
	Short: "Vehicle-insurance risk prediction pipeline",
	Long: `riskpipe trains, evaluates, and serves a vehicle-insurance
cross-sell risk model.

The training pipeline runs six stages (ingestion, validation,
transformation, training, evaluation, pusher) and promotes a candidate
model only when it beats production by a configured margin.

Usage:
  go run ./cmd/riskpipe [command]

Examples:
  go run ./cmd/riskpipe serve
  go run ./cmd/riskpipe train
  go run ./cmd/riskpipe scheduler start
  go run ./cmd/riskpipe status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
