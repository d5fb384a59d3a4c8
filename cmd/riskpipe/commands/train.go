package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run one training pipeline pass",
	Long: `Run the full training pipeline once and report the outcome.

The run pulls records from the document source, validates and transforms
them, trains a candidate model, and promotes it only when it beats the
production model by the configured margin. The first run against an empty
registry always promotes.

Example:
  go run ./cmd/riskpipe train`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := buildStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	summary, err := s.orchestrator.Run(ctx)

	fmt.Println("=== Training Run ===")
	fmt.Printf("Run ID:      %s\n", summary.RunID)
	fmt.Printf("Duration:    %s\n", summary.Duration.Round(0))
	fmt.Printf("Reached:     %s\n", summary.RanToStage)

	if summary.Failed() {
		fmt.Printf("Failed:      %s (%s)\n", summary.ErrorKind, summary.ErrorDetail)
		return err
	}

	if summary.Metric != nil {
		fmt.Printf("Metric:      %.4f\n", *summary.Metric)
	}
	if summary.Accepted != nil && *summary.Accepted {
		fmt.Printf("Promoted:    %s\n", summary.Version)
	} else {
		fmt.Println("Promoted:    no (candidate did not beat production)")
	}

	return nil
}
