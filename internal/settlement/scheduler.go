package settlement

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
)

type ReleaseAPI interface {
	Release(ctx context.Context, paymentID string) (*payment.Payment, error)
}

type SchedulerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	LockTTL      time.Duration
	MaxWorkers   int
	JobQueueSize int
}

// Scheduler periodically releases payments whose hold period has passed.
type Scheduler struct {
	releaser ReleaseAPI
	payments PaymentStore
	locker   Locker
	pool     *Pool
	config   SchedulerConfig
	metrics  *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(releaser ReleaseAPI, payments PaymentStore, locker Locker, config SchedulerConfig, recorder *metrics.Recorder, logger *slog.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}

	s := &Scheduler{
		releaser: releaser,
		payments: payments,
		locker:   locker,
		config:   config,
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
	}
	s.pool = NewPool(PoolConfig{
		MaxWorkers:   config.MaxWorkers,
		JobQueueSize: config.JobQueueSize,
	}, s.process, logger)
	return s
}

// Run scans once immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("settlement scheduler started", "poll_interval", s.config.PollInterval, "batch_size", s.config.BatchSize)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("settlement scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("settlement scheduler stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce queues the due payments of one scan and returns how many were
// queued. It does nothing when another instance holds the scan lock.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	defer s.metrics.ObserveScan(time.Now())

	release, acquired, err := s.locker.TryAcquire(ctx, ScanLockKey, s.config.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	if !acquired {
		s.logger.Debug("settlement scan skipped, lock held elsewhere")
		return 0, nil
	}
	defer release()

	due, err := s.payments.ListDueForRelease(ctx, s.now(), s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list payments due for release: %w", err)
	}

	queued := 0
	for _, p := range due {
		if s.pool.Submit(ReleaseJob{PaymentID: p.ID, MerchantID: p.MerchantID}) {
			queued++
		}
	}

	if len(due) > 0 {
		s.logger.Info("settlement scan dispatched", "due", len(due), "queued", queued)
	}
	return queued, nil
}

// Idle reports whether every dispatched release has finished.
func (s *Scheduler) Idle() bool {
	return s.pool.Idle()
}

func (s *Scheduler) Shutdown() {
	s.pool.Shutdown()
}

func (s *Scheduler) process(ctx context.Context, job ReleaseJob) {
	_, err := s.releaser.Release(ctx, job.PaymentID)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrAlreadyReleased), stderrors.Is(err, errors.ErrNotYetEligible):
		s.logger.Debug("release skipped", "payment_id", job.PaymentID, "reason", err.Error())
	default:
		s.logger.Error("scheduled release failed", "error", err, "payment_id", job.PaymentID, "merchant_id", job.MerchantID)
	}
}
