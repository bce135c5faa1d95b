package stalker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/infra/metrics"
	"arb-stalker/internal/model"

	"go.uber.org/zap"
)

// ErrScanInProgress is returned when Scan is called while another pass is running.
var ErrScanInProgress = errors.New("scan already in progress")

// ScanReport summarizes one pass.
type ScanReport struct {
	Block        uint64
	Stalkers     int
	Targets      int
	Scanned      int
	Transactions int
	Notified     int
	Dropped      int
	Failed       int
}

// Scan checks every target of every chat for transactions after its watermark,
// notifies the chat about each one and then moves the watermark to the height
// read at the start of the pass.
//
// The watermark is written after the notifications, so a crash repeats
// notifications on the next pass rather than losing them. When a send fails the
// watermark moves to the block before the failed transaction, and the rest is
// retried next pass. A chat that refuses messages (blocked, kicked, deleted)
// has its backlog dropped. Failures of a single target are counted in the
// report and do not stop the pass; failing to read the height or the records does.
func (s *Service) Scan(ctx context.Context) (ScanReport, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		metrics.ScanPasses.WithLabelValues("skipped").Inc()
		return ScanReport{}, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	start := time.Now()
	report, err := s.scan(ctx)
	if err != nil {
		metrics.ScanPasses.WithLabelValues("failed").Inc()
		return report, err
	}

	metrics.ScanPasses.WithLabelValues("ok").Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	metrics.LastScannedBlock.Set(float64(report.Block))
	metrics.TrackedTargets.Set(float64(report.Targets))
	return report, nil
}

func (s *Service) scan(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	height, err := s.explorer.BlockNumber(ctx)
	if err != nil {
		metrics.ExplorerErrors.WithLabelValues("block_number").Inc()
		return report, fmt.Errorf("failed to get current block: %w", err)
	}
	report.Block = height
	log.LogInfo("Scanning block", zap.Uint64("block", height))

	stalkers, err := s.store.All(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load stalkers: %w", err)
	}
	report.Stalkers = len(stalkers)

	for _, stalker := range stalkers {
		for _, target := range stalker.Targets {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Targets++
			if height <= target.LastBlockChecked {
				continue
			}
			report.Scanned++

			if err := s.scanTarget(ctx, stalker.ChatID, target, height, &report); err != nil {
				report.Failed++
				log.LogWarn("Target scan failed, will retry next pass",
					zap.Int64("chatID", stalker.ChatID),
					zap.String("alias", target.Alias),
					zap.String("address", target.Address),
					zap.Uint64("fromBlock", target.LastBlockChecked),
					zap.Uint64("toBlock", height),
					zap.Error(err))
			}
		}
	}

	return report, nil
}

func (s *Service) scanTarget(ctx context.Context, chatID int64, target model.Target, height uint64, report *ScanReport) error {
	txs, err := s.explorer.History(ctx, target.Address, target.LastBlockChecked, height)
	if err != nil {
		metrics.ExplorerErrors.WithLabelValues("history").Inc()
		return fmt.Errorf("failed to get history: %w", err)
	}
	report.Transactions += len(txs)

	for i, tx := range txs {
		text := FormatNotification(s.txURLPrefix, target.Alias, tx.Hash)
		err := s.messenger.SendMessage(ctx, chatID, text)
		if errors.Is(err, model.ErrChatUnavailable) {
			// the chat will not take messages, drop the rest of the backlog
			dropped := len(txs) - i
			report.Dropped += dropped
			metrics.NotificationsFailed.Add(float64(dropped))
			log.LogWarn("Chat unavailable, dropping notifications",
				zap.Int64("chatID", chatID),
				zap.String("alias", target.Alias),
				zap.Int("dropped", dropped),
				zap.Error(err))
			return s.advanceWatermark(ctx, chatID, target, height)
		}
		if err != nil {
			metrics.NotificationsFailed.Inc()
			// keep what was delivered: blocks before the failed transaction are done
			if tx.BlockNumber > 0 {
				if werr := s.advanceWatermark(ctx, chatID, target, tx.BlockNumber-1); werr != nil {
					err = errors.Join(err, werr)
				}
			}
			return fmt.Errorf("failed to notify about %s: %w", tx.Hash, err)
		}
		metrics.NotificationsSent.Inc()
		report.Notified++
	}

	if len(txs) > 0 {
		log.LogInfo("Notified about new transactions",
			zap.Int64("chatID", chatID),
			zap.String("alias", target.Alias),
			zap.Int("count", len(txs)))
	}

	return s.advanceWatermark(ctx, chatID, target, height)
}

// advanceWatermark reloads the record under the chat lock so commands that ran
// during the pass are kept. A target removed meanwhile is left alone and the
// watermark only ever moves forward.
func (s *Service) advanceWatermark(ctx context.Context, chatID int64, target model.Target, height uint64) error {
	unlock := s.locks.lock(chatID)
	defer unlock()

	stalker, err := s.store.Get(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	changed := false
	for i := range stalker.Targets {
		t := &stalker.Targets[i]
		if t.Alias == target.Alias && t.Address == target.Address && t.LastBlockChecked < height {
			t.LastBlockChecked = height
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.store.Put(ctx, stalker)
}
