package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkanlabs/riskpipe/internal/scheduler"
	"github.com/arkanlabs/riskpipe/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage scheduled retraining",
	Long: `Start the scheduler daemon or inspect its jobs.

Registered jobs:
  retrain_pipeline - full training run on RETRAIN_SCHEDULE (default 3 AM daily)

Example:
  go run ./cmd/riskpipe scheduler start
  go run ./cmd/riskpipe scheduler list`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := buildStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	sched := scheduler.New(s.log)
	if err := sched.AddJob(jobs.NewRetrainJob(s.orchestrator, s.cfg.RetrainSchedule, s.log)); err != nil {
		return fmt.Errorf("register retrain job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	s.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := buildStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	sched := scheduler.New(s.log)
	if err := sched.AddJob(jobs.NewRetrainJob(s.orchestrator, s.cfg.RetrainSchedule, s.log)); err != nil {
		return fmt.Errorf("register retrain job: %w", err)
	}

	fmt.Println("=== Scheduled Jobs ===")
	for name, stats := range sched.GetJobStats() {
		fmt.Printf("%s  (schedule: %s)\n", name, stats.Schedule)
	}

	return nil
}
