package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/loan-ledger/internal/app"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/service"
)

// sweeper is the batch surface the scheduler drives.
type sweeper interface {
	DetectOverdueAll(ctx context.Context, actor domain.Actor, asOf time.Time) (domain.OverdueSweepResult, error)
	ApplyPenaltiesAll(ctx context.Context, actor domain.Actor, asOf time.Time) (domain.OverdueSweepResult, error)
}

var _ sweeper = (*service.LedgerService)(nil)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := cfg.Logging.NewLogger()
	logger.Info("Starting ledger scheduler...")

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(initCtx, cfg, logger)
	initCancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Scheduler.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	if err := setupCronJobs(ctx, c, application.Ledger, cfg.Scheduler, logger); err != nil {
		logger.WithError(err).Fatal("Failed to schedule jobs")
	}

	c.Start()
	logger.Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	cancel()
	<-c.Stop().Done()
	logger.Info("Scheduler stopped")
}

func setupCronJobs(ctx context.Context, c *cron.Cron, ledger sweeper, cfg config.SchedulerConfig, logger *logrus.Logger) error {
	actor := domain.Actor{UserID: cfg.ActorID}
	loc := cfg.Location()

	// Flags loans with installments past their grace period.
	if _, err := c.AddFunc(cfg.OverdueSpec, func() {
		runSweep(ctx, "detect_overdue", logger, func(asOf time.Time) (domain.OverdueSweepResult, error) {
			return ledger.DetectOverdueAll(ctx, actor, asOf)
		}, loc)
	}); err != nil {
		return err
	}

	// Posts one late penalty per overdue installment per day.
	if _, err := c.AddFunc(cfg.PenaltySpec, func() {
		runSweep(ctx, "apply_penalties", logger, func(asOf time.Time) (domain.OverdueSweepResult, error) {
			return ledger.ApplyPenaltiesAll(ctx, actor, asOf)
		}, loc)
	}); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"overdue_spec": cfg.OverdueSpec,
		"penalty_spec": cfg.PenaltySpec,
		"timezone":     loc.String(),
	}).Info("Cron jobs scheduled successfully")
	return nil
}

func runSweep(ctx context.Context, job string, logger *logrus.Logger, sweep func(time.Time) (domain.OverdueSweepResult, error), loc *time.Location) {
	started := time.Now()
	asOf := started.In(loc)
	entry := logger.WithFields(logrus.Fields{"job": job, "as_of": asOf.Format(time.RFC3339)})
	entry.Info("Running scheduled sweep")

	result, err := sweep(asOf)
	entry = entry.WithFields(logrus.Fields{
		"scanned":   result.Scanned,
		"flagged":   result.Flagged,
		"penalties": result.Penalties,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"duration":  time.Since(started).String(),
	})
	if err != nil {
		if ctx.Err() != nil {
			entry.WithError(err).Warn("Sweep interrupted by shutdown")
			return
		}
		entry.WithError(err).Error("Sweep failed")
		return
	}
	entry.Info("Sweep finished")
}
