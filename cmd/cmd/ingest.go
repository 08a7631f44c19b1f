package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"harvester/internal/core"
	"harvester/internal/ingest"
	"harvester/internal/logger"
)

var (
	ingestSourceID string
	scheduleExpr   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run an ingest over all enabled sources, or one source",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()

		report, err := runIngest(ctx)
		if err != nil {
			logger.Error("Ingest failed", err)
			os.Exit(1)
		}
		// Per-source failures are part of the report, not an error exit.
		printJSON(report)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run ingests on a cron schedule until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		if scheduleExpr == "" {
			logger.Error("Missing --cron expression", nil)
			os.Exit(1)
		}
		ctx, stop := signalContext()
		defer stop()

		scheduler := cron.New()
		_, err := scheduler.AddFunc(scheduleExpr, func() {
			jobID := uuid.NewString()
			logger.Info("scheduled ingest starting", "job_id", jobID)
			report, err := runIngest(ctx)
			if err != nil {
				logger.Error("Scheduled ingest failed", err, "job_id", jobID)
				return
			}
			logger.Info("scheduled ingest finished",
				"job_id", jobID,
				"run_id", report.RunID,
				"successes", len(report.Successes),
				"failures", len(report.Failures),
			)
		})
		if err != nil {
			logger.Error("Invalid cron expression", err, "expr", scheduleExpr)
			os.Exit(1)
		}

		scheduler.Start()
		logger.Info("scheduler running", "cron", scheduleExpr)
		<-ctx.Done()
		<-scheduler.Stop().Done()
	},
}

func runIngest(ctx context.Context) (*core.RunReport, error) {
	opts := ingestOptions()
	if ingestSourceID != "" {
		return ingest.One(ctx, ingestSourceID, opts)
	}
	return ingest.All(ctx, opts)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourceID, "source", "", "ingest only this source id")
	scheduleCmd.Flags().StringVar(&scheduleExpr, "cron", "", "cron expression, e.g. \"0 */6 * * *\"")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(scheduleCmd)
}
