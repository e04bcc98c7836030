package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/merchant-settlement/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start the settlement release scheduler or the withdrawal reconciler as a standalone process.`,
}

var settlementWorkerCmd = &cobra.Command{
	Use:   "settlement",
	Short: "Start the settlement release scheduler",
	Long:  `Periodically release payments whose hold period has passed, using a worker pool.`,
	Run: func(cmd *cobra.Command, args []string) {
		runWorker("settlement", func(ctx context.Context, app *application) error {
			if runOnce {
				queued, err := app.scheduler.RunOnce(ctx)
				if err != nil {
					return err
				}
				waitIdle(ctx, app)
				app.logger.Info("settlement scan complete", "queued", queued)
				return nil
			}
			return app.scheduler.Run(ctx)
		})
	},
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Start the withdrawal reconciler",
	Long:  `Finish withdrawals whose payout was sent but not yet debited, and resubmit or fail stale pending payouts.`,
	Run: func(cmd *cobra.Command, args []string) {
		runWorker("reconcile", func(ctx context.Context, app *application) error {
			if runOnce {
				report, err := app.reconciler.Reconcile(ctx)
				if err != nil {
					return err
				}
				app.logger.Info("reconciliation complete",
					"completed", report.Completed,
					"resubmitted", report.Resubmitted,
					"failed", report.Failed,
					"skipped", report.Skipped)
				return nil
			}
			return app.reconciler.Run(ctx)
		})
	},
}

var (
	runOnce    bool
	maxWorkers int
	batchSize  int
)

func runWorker(name string, run func(ctx context.Context, app *application) error) {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.Settlement.MaxWorkers = getIntFlag(maxWorkers, config.Settlement.MaxWorkers)
	config.Settlement.BatchSize = getIntFlag(batchSize, config.Settlement.BatchSize)
	if config.Settlement.JobQueueSize < config.Settlement.BatchSize {
		config.Settlement.JobQueueSize = config.Settlement.BatchSize
	}

	log := logger.LoggerWrapper().With("worker", name)

	app, err := newApplication(config, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("worker is running. Press Ctrl+C to stop.",
		"max_workers", config.Settlement.MaxWorkers,
		"batch_size", config.Settlement.BatchSize,
		"once", runOnce)

	if err := run(ctx, app); err != nil {
		log.Error("worker failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	log.Info("worker shutdown complete")
}

// waitIdle blocks until every queued release finished, or ctx ends.
func waitIdle(ctx context.Context, app *application) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !app.scheduler.Idle() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	workerCmd.PersistentFlags().BoolVar(&runOnce, "once", false, "Run a single pass and exit")
	settlementWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of release workers (overrides config)")
	settlementWorkerCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Payments released per scan (overrides config)")

	workerCmd.AddCommand(settlementWorkerCmd)
	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
