package bots_monitor

// Scan monitor: runs a scan pass once a minute on a cron schedule.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arb-stalker/internal/features/stalker"
	log "arb-stalker/internal/infra/log"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	ScanSchedule    = "*/1 * * * *"
	scanPassTimeout = 5 * time.Minute
)

// Scanner runs one scan pass.
type Scanner interface {
	Scan(ctx context.Context) (stalker.ScanReport, error)
}

type scanJob struct {
	ctx     context.Context
	scanner Scanner
}

func (j scanJob) Run() {
	RunScanPass(j.ctx, j.scanner)
}

// RunScanMonitor blocks until ctx is done and the running pass, if any, has returned.
func RunScanMonitor(ctx context.Context, scanner Scanner) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddJob(ScanSchedule, scanJob{ctx: ctx, scanner: scanner}); err != nil {
		return fmt.Errorf("failed to schedule scan: %w", err)
	}

	c.Start()
	log.LogInfo("Scan monitor started", zap.String("schedule", ScanSchedule))

	<-ctx.Done()
	<-c.Stop().Done()
	log.LogInfo("Scan monitor stopped")
	return nil
}

// RunScanPass runs one pass with its own id and timeout and logs the outcome.
func RunScanPass(ctx context.Context, scanner Scanner) (stalker.ScanReport, error) {
	passID := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, scanPassTimeout)
	defer cancel()

	start := time.Now()
	report, err := scanner.Scan(ctx)
	duration := time.Since(start)

	switch {
	case errors.Is(err, stalker.ErrScanInProgress):
		log.LogWarn("Previous scan pass still running, skipping", zap.String("passID", passID))
	case err != nil:
		log.LogError("Scan pass failed",
			zap.String("passID", passID),
			zap.Duration("duration", duration),
			zap.Error(err))
	default:
		log.LogInfo("Scan pass finished",
			zap.String("passID", passID),
			zap.Uint64("block", report.Block),
			zap.Int("stalkers", report.Stalkers),
			zap.Int("targets", report.Targets),
			zap.Int("scanned", report.Scanned),
			zap.Int("transactions", report.Transactions),
			zap.Int("notified", report.Notified),
			zap.Int("dropped", report.Dropped),
			zap.Int("failed", report.Failed),
			zap.Duration("duration", duration))
	}
	return report, err
}

// cronLogger routes cron's own logging into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.LogDebug("cron: "+msg, kvFields(keysAndValues)...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.LogError("cron: "+msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
