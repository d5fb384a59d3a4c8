package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arkanlabs/riskpipe/internal/api"
	"github.com/arkanlabs/riskpipe/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the REST API server.

Endpoints:
  GET  /health              - Health check
  POST /api/predict         - Score one application record
  POST /api/train           - Trigger a training run
  GET  /api/train/events    - Run event stream (websocket)
  GET  /api/runs            - Run history
  GET  /api/models          - Model versions
  GET  /api/models/current  - Production model

Example:
  go run ./cmd/riskpipe serve
  go run ./cmd/riskpipe serve --port 8090`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := buildStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if servePort != "" {
		s.cfg.Port = servePort
	}

	limiter := api.NewPredictLimiter(s.redis, s.cfg.PredictRateLimit, s.cfg.PredictRateWindow, s.log)

	router := api.NewRouter(
		handlers.NewPredictHandler(s.predict, s.log),
		handlers.NewTrainHandler(s.orchestrator, s.runs, s.log),
		handlers.NewModelsHandler(s.predict, s.registry, s.log),
		handlers.NewEventsHandler(s.orchestrator.Events(), s.log),
		limiter,
		s.log,
	)

	server := api.New(s.cfg, s.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
