package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
)

type Service struct {
	payments PaymentStore
	ledger   LedgerAPI
	events   events.Publisher
	metrics  *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(payments PaymentStore, ledger LedgerAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		payments: payments,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Release moves a payment's amount from pending to available once its hold
// period is over. The ledger reference makes the credit apply once, so a call
// that follows a crash between the credit and the status update only fixes
// the status.
func (s *Service) Release(ctx context.Context, paymentID string) (*payment.Payment, error) {
	if paymentID == "" {
		return nil, errors.NewValidationFieldError("paymentId", "paymentId is required", errors.ErrCodeValidationFailed)
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if _, ok := errors.IsAppError(err); ok {
			return nil, err
		}
		s.logger.Error("failed to load payment", "error", err, "payment_id", paymentID)
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	if p.IsReleased() {
		s.metrics.Release("skipped")
		return nil, errors.ErrAlreadyReleased
	}

	now := s.now()
	if now.Before(p.ReleaseTime) {
		s.metrics.Release("skipped")
		return nil, errors.ErrNotYetEligible.WithDetails(map[string]interface{}{
			"releaseTime": p.ReleaseTime,
		})
	}

	// The pending credit of a capture that failed after persisting the
	// payment is applied here; a no-op once the capture reference exists.
	if err := s.ledger.IncreasePending(ctx, p.MerchantID, p.ServicePrice, ledger.CaptureReference(p.TransactionID)); err != nil {
		s.metrics.Release("failed")
		s.logger.Error("failed to confirm pending credit",
			"error", err,
			"payment_id", p.ID,
			"transaction_id", p.TransactionID,
			"merchant_id", p.MerchantID)
		return nil, err
	}

	if err := s.ledger.ReleaseFunds(ctx, p.MerchantID, p.ServicePrice, ledger.ReleaseReference(p.ID)); err != nil {
		s.metrics.Release("failed")
		s.logger.Error("failed to release funds",
			"error", err,
			"payment_id", p.ID,
			"merchant_id", p.MerchantID,
			"amount", p.ServicePrice.String())
		return nil, err
	}

	marked, err := s.payments.MarkCompleted(ctx, p.ID, now)
	if err != nil {
		s.metrics.Release("failed")
		s.logger.Error("funds released but payment status not updated", "error", err, "payment_id", p.ID)
		return nil, fmt.Errorf("failed to mark payment completed: %w", err)
	}
	if !marked {
		s.metrics.Release("skipped")
		return nil, errors.ErrAlreadyReleased
	}

	p.Status = payment.StatusCompleted
	p.ReleasedAt = &now

	s.metrics.Release("released")
	s.logger.Info("payment released",
		"payment_id", p.ID,
		"merchant_id", p.MerchantID,
		"amount", p.ServicePrice.String())

	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewPaymentReleasedEvent(p.ID, p.MerchantID, p.ServicePrice)); err != nil {
			s.logger.Warn("failed to publish payment released event", "error", err, "payment_id", p.ID)
		}
	}
	return p, nil
}
