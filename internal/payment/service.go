package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	gatewaydm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

type Service struct {
	repo     RepositoryAPI
	ledger   LedgerAPI
	catalog  CatalogAPI
	verifier OrderVerifier
	events   events.Publisher
	metrics  *metrics.Recorder
	logger   *slog.Logger

	location   *time.Location
	holdPeriod time.Duration
	now        func() time.Time
	backoff    func() retry.Backoff
}

type Option func(*Service)

// WithOrderVerifier turns on processor-side verification of every capture.
func WithOrderVerifier(v OrderVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

func WithHoldPeriod(d time.Duration) Option {
	return func(s *Service) { s.holdPeriod = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithBackoff(b func() retry.Backoff) Option {
	return func(s *Service) { s.backoff = b }
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(100 * time.Millisecond)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(4, b)
}

func NewService(repo RepositoryAPI, ledger LedgerAPI, catalog CatalogAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		ledger:     ledger,
		catalog:    catalog,
		logger:     logger,
		location:   time.UTC,
		holdPeriod: DefaultHoldPeriod,
		now:        time.Now,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture records a payment the processor has already captured: the payment
// row, the pending credit and the booking count. The three writes are retried
// together and each is idempotent, so a resubmitted capture is harmless.
func (s *Service) Capture(ctx context.Context, req *CaptureRequest) (*payment.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		s.logger.Warn("capture for unknown service", "error", err, "service_id", req.ServiceID, "transaction_id", req.TransactionID)
		return nil, err
	}
	if svc.UserID != req.MerchantID {
		s.logger.Warn("capture service owner mismatch", "service_id", req.ServiceID, "merchant_id", req.MerchantID)
		return nil, errors.ErrServiceNotFound
	}
	if !svc.Price.Equal(req.ServicePrice) {
		return nil, errors.NewValidationFieldError("servicePrice", "servicePrice does not match the service price", errors.ErrCodePriceMismatch)
	}
	if req.ServiceName == "" {
		req.ServiceName = svc.ServiceName
	}

	if err := s.verifyOrder(ctx, req); err != nil {
		s.metrics.Capture("rejected")
		return nil, err
	}

	releaseTime, err := ComputeReleaseTime(req.SelectedDate, req.SelectedTimeSlot, s.location, s.holdPeriod)
	if err != nil {
		return nil, errors.NewValidationFieldError("selectedTimeSlot", err.Error(), errors.ErrCodeInvalidTimeSlot)
	}

	candidate := req.toPayment(uuid.NewString(), releaseTime, s.now())

	var recorded *payment.Payment
	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		stored, err := s.persist(ctx, candidate)
		if err != nil {
			return retry.RetryableError(err)
		}

		if err := s.ledger.IncreasePending(ctx, stored.MerchantID, stored.ServicePrice, ledger.CaptureReference(stored.TransactionID)); err != nil {
			return retry.RetryableError(fmt.Errorf("failed to credit pending balance: %w", err))
		}

		if _, err := s.repo.RecordBooking(ctx, stored.ID, stored.ServiceID); err != nil {
			return retry.RetryableError(fmt.Errorf("failed to record booking: %w", err))
		}

		recorded = stored
		return nil
	})
	if err != nil {
		s.metrics.Capture("failed")
		s.logger.Error("failed to record captured payment",
			"error", err,
			"transaction_id", req.TransactionID,
			"merchant_id", req.MerchantID,
			"amount", req.ServicePrice.String())
		return nil, errors.ErrBookingRecordFailed.WithCause(err)
	}

	s.metrics.Capture("recorded")
	s.logger.Info("payment captured",
		"payment_id", recorded.ID,
		"transaction_id", recorded.TransactionID,
		"merchant_id", recorded.MerchantID,
		"amount", recorded.ServicePrice.String(),
		"release_time", recorded.ReleaseTime)

	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewPaymentCapturedEvent(recorded.ID, recorded.TransactionID, recorded.MerchantID, recorded.ServicePrice, recorded.ReleaseTime)); err != nil {
			s.logger.Warn("failed to publish payment captured event", "error", err, "payment_id", recorded.ID)
		}
	}

	return recorded, nil
}

func (s *Service) persist(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	err := s.repo.Create(ctx, p)
	if err == nil {
		return p, nil
	}
	if stderrors.Is(err, ErrDuplicateTransaction) {
		existing, getErr := s.repo.GetByTransactionID(ctx, p.TransactionID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load existing payment: %w", getErr)
		}
		s.logger.Info("payment already recorded, resuming", "payment_id", existing.ID, "transaction_id", existing.TransactionID)
		return existing, nil
	}
	return nil, fmt.Errorf("failed to create payment record: %w", err)
}

func (s *Service) verifyOrder(ctx context.Context, req *CaptureRequest) error {
	if s.verifier == nil {
		return nil
	}
	order, err := s.verifier.GetOrder(ctx, req.TransactionID)
	if err != nil {
		s.logger.Error("failed to verify capture", "error", err, "transaction_id", req.TransactionID)
		return errors.NewExternalError("could not verify the payment with the processor", errors.ErrCodeCaptureVerificationFailed, err)
	}
	if order.Status != gatewaydm.OrderStatusCompleted || !order.Amount.Equal(req.ServicePrice) {
		s.logger.Warn("capture does not match processor order",
			"transaction_id", req.TransactionID,
			"order_status", order.Status,
			"order_amount", order.Amount.String(),
			"expected_amount", req.ServicePrice.String())
		return errors.NewExternalError("payment was not captured by the processor", errors.ErrCodeCaptureVerificationFailed, nil)
	}
	if req.PayerName == "" {
		req.PayerName = order.Payer
	}
	return nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListMerchantPayments(ctx context.Context, merchantID string, limit, offset int) ([]*payment.Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	payments, err := s.repo.ListByMerchant(ctx, merchantID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list payments", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
