package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thornlabs/pulse/internal/config"
	"github.com/thornlabs/pulse/internal/database"
	"github.com/thornlabs/pulse/internal/executions"
	"github.com/thornlabs/pulse/internal/metrics"
	"github.com/thornlabs/pulse/internal/scheduler"
	"github.com/thornlabs/pulse/internal/workflows"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workflow scheduler",
	Long: `Run the Pulse scheduler until interrupted.

On startup every enabled schedule-triggered workflow is loaded from the
database and registered. The scheduler then fires workflows as their
cron expressions or intervals come due, recording each run.

Shutdown (SIGINT/SIGTERM) waits for in-flight executions up to the
configured shutdown timeout.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	configureLogging(cfg.Logging)

	if !cfg.Scheduler.Enabled {
		log.Warn().Msg("Scheduler is disabled in configuration, nothing to do")
		return nil
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
		return err
	}
	defer db.Close()

	workflowStore := workflows.NewStore(db)
	runStore := executions.NewStore(db)

	registry := scheduler.NewRegistry(&scheduler.RegistryConfig{
		PollInterval:    cfg.Scheduler.PollInterval,
		ShutdownTimeout: cfg.Scheduler.ShutdownTimeout,
	})

	dispatcher := scheduler.NewDispatcher(newLogExecutor(), runStore, &scheduler.DispatcherConfig{
		Timeout: cfg.Scheduler.DispatchTimeout,
	})

	loader := scheduler.NewLoader(workflowStore, registry, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := loader.LoadAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to load scheduled workflows")
		return err
	}

	if err := registry.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start scheduler")
		return err
	}

	metricsSrv := startMetricsServer(cfg.Metrics)
	go watchDBStats(ctx, db)
	go pruneRuns(ctx, runStore, cfg.Scheduler.RunRetention)

	log.Info().
		Str("db", cfg.Database.Path).
		Dur("poll_interval", cfg.Scheduler.PollInterval).
		Msg("Pulse scheduler running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutdown signal received")
	cancel()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if err := registry.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("Scheduler shutdown abandoned in-flight executions")
		return nil
	}

	log.Info().Msg("Scheduler stopped cleanly")
	return nil
}

// newLogExecutor returns the built-in executor: it records the fire in the
// log and reports success. Hook a real execution engine in here.
func newLogExecutor() scheduler.Executor {
	return scheduler.ExecutorFunc(func(ctx context.Context, workflowID int64, ec scheduler.ExecutionContext) (*scheduler.ExecutionResult, error) {
		log.Info().
			Int64("workflow_id", workflowID).
			Str("triggered_by", ec.TriggeredBy).
			Time("triggered_at", ec.TriggeredAt).
			Msg("Workflow fired")
		return &scheduler.ExecutionResult{Success: true}, nil
	})
}

func startMetricsServer(cfg config.MetricsConfig) *http.Server {
	if !cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	return srv
}

// watchDBStats periodically pushes connection pool stats into the metrics
// gauges.
func watchDBStats(ctx context.Context, db *database.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		}
	}
}

// pruneRuns deletes completed run records older than the retention window.
func pruneRuns(ctx context.Context, runs *executions.Store, retention time.Duration) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := runs.PruneBefore(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				log.Error().Err(err).Msg("Failed to prune workflow runs")
				continue
			}
			if pruned > 0 {
				log.Info().Int64("pruned", pruned).Msg("Pruned old workflow runs")
			}
		}
	}
}
