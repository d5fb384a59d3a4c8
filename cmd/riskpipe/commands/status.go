package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arkanlabs/riskpipe/internal/registry"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the production model and version history",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := buildStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	fmt.Println("=== Model Registry ===")

	version, ok, err := s.registry.GetCurrent(ctx)
	if err != nil {
		return fmt.Errorf("read production pointer: %w", err)
	}

	if !ok {
		fmt.Println("Production:  none (no model promoted yet)")
	} else {
		bundle, err := s.registry.Get(ctx, version)
		if err != nil && !errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("load production model: %w", err)
		}
		fmt.Printf("Production:  %s\n", version)
		if err == nil {
			fmt.Printf("Metric:      %.4f\n", bundle.Metric)
			fmt.Printf("Trained at:  %s\n", bundle.TrainedAt.Format("2006-01-02 15:04:05 MST"))
		}
	}

	versions, err := s.registry.ListVersions(ctx)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}

	fmt.Printf("Versions:    %d\n", len(versions))
	for _, v := range versions {
		marker := " "
		if v == version {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, v)
	}

	if s.runs != nil {
		recent, err := s.runs.ListRecent(ctx, 5)
		if err != nil {
			return fmt.Errorf("list recent runs: %w", err)
		}

		fmt.Println("\n=== Recent Runs ===")
		for _, r := range recent {
			outcome := "failed: " + string(r.ErrorKind)
			if !r.Failed() {
				outcome = "rejected"
				if r.Accepted != nil && *r.Accepted {
					outcome = "promoted " + r.Version
				}
			}
			fmt.Printf("%s  %-18s %s\n", r.StartedAt.Format("2006-01-02 15:04"), r.RanToStage, outcome)
		}
	}

	return nil
}
