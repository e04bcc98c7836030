package withdrawal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	withdrawaldm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
)

const ReconcileLockKey = "withdrawal:reconcile"

type ReconcilerConfig struct {
	Interval          time.Duration
	StaleAfter        time.Duration
	LockTTL           time.Duration
	BatchSize         int
	MaxPayoutAttempts int
}

// ReconcileReport counts what one pass did.
type ReconcileReport struct {
	Completed   int
	Resubmitted int
	Failed      int
	Skipped     int
}

// Reconciler finishes withdrawals a crash or an outage left behind. It only
// ever repeats the debit of a PAYOUT_SENT withdrawal; PENDING ones are
// resubmitted under their original sender_batch_id.
type Reconciler struct {
	service *Service
	config  ReconcilerConfig
	logger  *slog.Logger
}

func NewReconciler(service *Service, config ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 10 * time.Minute
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 2 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxPayoutAttempts <= 0 {
		config.MaxPayoutAttempts = 3
	}
	return &Reconciler{
		service: service,
		config:  config,
		logger:  logger,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("withdrawal reconciler started", "interval", r.config.Interval, "stale_after", r.config.StaleAfter)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("withdrawal reconciliation failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("withdrawal reconciler stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Reconcile makes one pass over PAYOUT_SENT withdrawals and stale PENDING
// ones. It returns an empty report when another instance holds the lock.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	s := r.service

	release, acquired, err := s.locker.TryAcquire(ctx, ReconcileLockKey, r.config.LockTTL)
	if err != nil {
		return report, fmt.Errorf("failed to acquire reconcile lock: %w", err)
	}
	if !acquired {
		r.logger.Debug("withdrawal reconciliation skipped, lock held elsewhere")
		return report, nil
	}
	defer release()

	staleBefore := s.now().Add(-r.config.StaleAfter)
	list, err := s.repo.ListForReconcile(ctx, staleBefore, r.config.BatchSize)
	if err != nil {
		return report, fmt.Errorf("failed to list withdrawals to reconcile: %w", err)
	}

	for _, w := range list {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		r.reconcileOne(ctx, w, &report)
	}

	if len(list) > 0 {
		r.logger.Info("withdrawal reconciliation finished",
			"candidates", len(list),
			"completed", report.Completed,
			"resubmitted", report.Resubmitted,
			"failed", report.Failed,
			"skipped", report.Skipped)
	}
	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, w *withdrawaldm.Withdrawal, report *ReconcileReport) {
	s := r.service
	log := r.logger.With("withdrawal_id", w.ID, "merchant_id", w.MerchantID, "status", w.Status)

	// A live request for the same merchant owns its withdrawal.
	release, acquired, err := s.locker.TryAcquire(ctx, LockKey(w.MerchantID), s.lockTTL)
	if err != nil || !acquired {
		report.Skipped++
		return
	}
	defer release()

	if w.Status == withdrawaldm.StatusPending {
		if !r.resubmit(ctx, w, report, log) {
			return
		}
	} else if !r.confirmBatch(ctx, w, report, log) {
		return
	}

	if err := s.settle(ctx, w); err != nil {
		report.Skipped++
		log.Error("withdrawal debit still failing", "error", err)
		return
	}
	report.Completed++
}

// confirmBatch asks the processor about the batch of a PAYOUT_SENT
// withdrawal before its debit. A denied or canceled batch moved no money and
// is left for review.
func (r *Reconciler) confirmBatch(ctx context.Context, w *withdrawaldm.Withdrawal, report *ReconcileReport, log *slog.Logger) bool {
	batchID := w.BatchID()
	if batchID == "" {
		return true
	}
	batch, err := r.service.payouts.GetPayoutBatch(ctx, batchID)
	if err != nil {
		report.Skipped++
		log.Warn("failed to look up payout batch", "error", err, "batch_id", batchID)
		return false
	}
	if batch.Rejected() {
		report.Skipped++
		log.Error("sent payout batch was rejected, needs review", "batch_id", batchID, "batch_status", batch.BatchStatus)
		return false
	}
	return true
}

// resubmit sends the payout of a stale PENDING withdrawal again under its
// original sender_batch_id and reports whether w is now PAYOUT_SENT. Only a
// definitive rejection fails it: an unknown outcome keeps it PENDING, and past
// MaxPayoutAttempts it is logged for review instead.
func (r *Reconciler) resubmit(ctx context.Context, w *withdrawaldm.Withdrawal, report *ReconcileReport, log *slog.Logger) bool {
	s := r.service

	if err := s.repo.IncrementAttempts(ctx, w.ID, s.now()); err != nil {
		log.Error("failed to count payout attempt", "error", err)
		report.Skipped++
		return false
	}
	w.Attempts++

	result, err := s.sendPayout(ctx, w)
	if err != nil {
		switch {
		case w.Status == withdrawaldm.StatusFailed:
			report.Failed++
		case w.Attempts > r.config.MaxPayoutAttempts:
			report.Skipped++
			log.Error("payout outcome still unknown, needs review", "error", err, "attempts", w.Attempts)
		default:
			report.Skipped++
		}
		return false
	}
	report.Resubmitted++
	log.Info("stale withdrawal payout resubmitted", "attempts", w.Attempts)

	if err := s.markSent(ctx, w, result.BatchID); err != nil {
		log.Error("failed to mark resubmitted withdrawal", "error", err)
		return false
	}
	return true
}
