package withdrawal

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/core/common/validation"
	gatewaydm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/paymentgateway"
	withdrawaldm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
	"github.com/frahmantamala/merchant-settlement/internal/paymentgateway"
	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

const (
	IDPrefix         = "withdrawal_"
	DefaultLockTTL   = 30 * time.Second
	defaultListLimit = 20
	maxReasonLength  = 500
)

// LockKey is the per-merchant lock held for the whole withdrawal request.
func LockKey(merchantID string) string {
	return "withdrawal:" + merchantID
}

// NewID returns a withdrawal id whose ULID part starts with the creation time
// in milliseconds.
func NewID(now time.Time) string {
	return IDPrefix + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

type Service struct {
	repo      RepositoryAPI
	ledger    LedgerAPI
	payouts   PayoutAPI
	merchants MerchantAPI
	locker    Locker
	events    events.Publisher
	metrics   *metrics.Recorder
	logger    *slog.Logger

	lockTTL time.Duration
	now     func() time.Time
	backoff func() retry.Backoff
}

type Option func(*Service)

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) { s.lockTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBackoff sets the retry policy of the balance debit that follows a
// successful payout.
func WithBackoff(b func() retry.Backoff) Option {
	return func(s *Service) { s.backoff = b }
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(100 * time.Millisecond)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(2*time.Second, b)
	return retry.WithMaxRetries(5, b)
}

func NewService(repo RepositoryAPI, ledger LedgerAPI, payouts PayoutAPI, merchants MerchantAPI, locker Locker, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		ledger:    ledger,
		payouts:   payouts,
		merchants: merchants,
		locker:    locker,
		logger:    logger,
		lockTTL:   DefaultLockTTL,
		now:       time.Now,
		backoff:   defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestWithdrawal pays amount out to email and debits the merchant's
// available balance. The returned withdrawal is COMPLETED, or PAYOUT_SENT
// when the payout went out but the debit is left to the reconciler.
func (s *Service) RequestWithdrawal(ctx context.Context, merchantID string, amount decimal.Decimal, email string) (*withdrawaldm.Withdrawal, error) {
	if merchantID == "" {
		return nil, errors.NewValidationFieldError("merchantId", "merchantId is required", errors.ErrCodeValidationFailed)
	}
	if appErr := validation.ValidateAmount("amount", amount); appErr != nil {
		return nil, appErr
	}

	email, err := s.destination(ctx, merchantID, email)
	if err != nil {
		return nil, err
	}

	release, acquired, err := s.locker.TryAcquire(ctx, LockKey(merchantID), s.lockTTL)
	if err != nil {
		s.logger.Error("failed to acquire withdrawal lock", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to acquire withdrawal lock: %w", err)
	}
	if !acquired {
		s.metrics.Withdrawal("rejected")
		return nil, errors.ErrWithdrawalInProgress
	}
	defer release()

	available, err := s.available(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(available) {
		s.metrics.Withdrawal("rejected")
		return nil, errors.ErrInsufficientBalance.WithDetails(map[string]interface{}{
			"available": available.StringFixed(2),
			"requested": amount.StringFixed(2),
		})
	}

	now := s.now()
	w := &withdrawaldm.Withdrawal{
		ID:         NewID(now),
		MerchantID: merchantID,
		Amount:     amount,
		Email:      email,
		Status:     withdrawaldm.StatusPending,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		s.logger.Error("failed to create withdrawal", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	s.logger.Info("withdrawal requested",
		"withdrawal_id", w.ID,
		"merchant_id", merchantID,
		"amount", amount.StringFixed(2))

	result, err := s.sendPayout(ctx, w)
	if err != nil {
		return w, err
	}

	if err := s.markSent(ctx, w, result.BatchID); err != nil {
		return w, err
	}

	if err := s.settle(ctx, w); err != nil {
		// The money is out; the reconciler finishes the debit.
		s.logger.Error("payout sent but balance debit failed",
			"error", err,
			"withdrawal_id", w.ID,
			"merchant_id", merchantID,
			"amount", amount.StringFixed(2))
	}
	return w, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, merchantID string, limit int) ([]*withdrawaldm.Withdrawal, error) {
	if merchantID == "" {
		return nil, errors.NewValidationFieldError("merchantId", "merchantId is required", errors.ErrCodeValidationFailed)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	list, err := s.repo.ListByMerchant(ctx, merchantID, limit)
	if err != nil {
		s.logger.Error("failed to list withdrawals", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	if list == nil {
		list = []*withdrawaldm.Withdrawal{}
	}
	return list, nil
}

func (s *Service) GetWithdrawal(ctx context.Context, id string) (*withdrawaldm.Withdrawal, error) {
	if id == "" {
		return nil, errors.NewValidationFieldError("id", "id is required", errors.ErrCodeValidationFailed)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) destination(ctx context.Context, merchantID, email string) (string, error) {
	if email == "" {
		m, err := s.merchants.GetByID(ctx, merchantID)
		if err != nil {
			return "", err
		}
		email = m.PaypalEmail
	}
	if appErr := validation.ValidateEmail("email", email); appErr != nil {
		return "", appErr
	}
	return email, nil
}

// available is the balance minus withdrawals that may still be debited.
func (s *Service) available(ctx context.Context, merchantID string) (decimal.Decimal, error) {
	view, err := s.ledger.GetBalance(ctx, merchantID)
	if err != nil {
		s.logger.Error("failed to read balance", "error", err, "merchant_id", merchantID)
		return decimal.Zero, err
	}
	inFlight, err := s.repo.SumInFlight(ctx, merchantID)
	if err != nil {
		s.logger.Error("failed to sum in-flight withdrawals", "error", err, "merchant_id", merchantID)
		return decimal.Zero, fmt.Errorf("failed to sum in-flight withdrawals: %w", err)
	}
	return view.Balance.Sub(inFlight), nil
}

// sendPayout submits w with its id as sender_batch_id. A duplicate batch
// answer means an earlier attempt got through. Exhausted transient errors
// leave w PENDING since the payout may have been accepted.
func (s *Service) sendPayout(ctx context.Context, w *withdrawaldm.Withdrawal) (*gatewaydm.PayoutResult, error) {
	result, err := s.payouts.CreatePayout(ctx, &gatewaydm.PayoutRequest{
		SenderBatchID: w.ID,
		Amount:        w.Amount,
		Email:         w.Email,
	})
	if err == nil {
		return result, nil
	}
	if stderrors.Is(err, paymentgateway.ErrDuplicateBatch) {
		s.logger.Info("payout batch already accepted", "withdrawal_id", w.ID)
		return &gatewaydm.PayoutResult{}, nil
	}

	if stderrors.Is(err, paymentgateway.ErrTransient) {
		s.metrics.Withdrawal("unknown")
		s.logger.Warn("payout outcome unknown, left for reconciliation", "error", err, "withdrawal_id", w.ID)
		return nil, errors.ErrPayoutFailed.WithCause(err).WithDetails(map[string]interface{}{
			"withdrawalId": w.ID,
			"status":       w.Status,
		})
	}

	s.fail(ctx, w, err)
	return nil, errors.ErrPayoutFailed.WithCause(err)
}

func (s *Service) markSent(ctx context.Context, w *withdrawaldm.Withdrawal, batchID string) error {
	now := s.now()
	if err := s.repo.MarkPayoutSent(ctx, w.ID, batchID, now); err != nil {
		s.logger.Error("payout sent but status not updated", "error", err, "withdrawal_id", w.ID)
		return fmt.Errorf("failed to mark withdrawal payout sent: %w", err)
	}
	w.Status = withdrawaldm.StatusPayoutSent
	if batchID != "" {
		w.PayoutBatchID = &batchID
	}
	w.UpdatedAt = now
	s.metrics.Withdrawal("payout_sent")
	return nil
}

func (s *Service) fail(ctx context.Context, w *withdrawaldm.Withdrawal, cause error) {
	reason := cause.Error()
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}
	now := s.now()
	if err := s.repo.MarkFailed(ctx, w.ID, reason, now); err != nil {
		s.logger.Error("failed to mark withdrawal failed", "error", err, "withdrawal_id", w.ID)
		return
	}
	w.Status = withdrawaldm.StatusFailed
	w.FailureReason = &reason
	w.UpdatedAt = now

	s.metrics.Withdrawal("failed")
	s.logger.Warn("withdrawal failed",
		"withdrawal_id", w.ID,
		"merchant_id", w.MerchantID,
		"reason", reason)

	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewWithdrawalFailedEvent(w.ID, w.MerchantID, w.Amount, reason)); err != nil {
			s.logger.Warn("failed to publish withdrawal failed event", "error", err, "withdrawal_id", w.ID)
		}
	}
}

// settle debits a PAYOUT_SENT withdrawal and completes it. The ledger
// reference makes a repeated debit a no-op.
func (s *Service) settle(ctx context.Context, w *withdrawaldm.Withdrawal) error {
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		err := s.ledger.DebitForWithdrawal(ctx, w.MerchantID, w.Amount, ledger.WithdrawalReference(w.ID))
		if err == nil {
			return nil
		}
		if appErr, ok := errors.IsAppError(err); ok && !stderrors.Is(appErr, errors.ErrConcurrencyConflict) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.repo.MarkCompleted(ctx, w.ID, now); err != nil {
		if stderrors.Is(err, ErrStaleTransition) {
			w.Status = withdrawaldm.StatusCompleted
			return nil
		}
		return fmt.Errorf("failed to mark withdrawal completed: %w", err)
	}
	w.Status = withdrawaldm.StatusCompleted
	w.UpdatedAt = now

	s.metrics.Withdrawal("completed")
	s.logger.Info("withdrawal completed",
		"withdrawal_id", w.ID,
		"merchant_id", w.MerchantID,
		"amount", w.Amount.StringFixed(2),
		"batch_id", w.BatchID())

	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewWithdrawalCompletedEvent(w.ID, w.MerchantID, w.Amount, w.BatchID())); err != nil {
			s.logger.Warn("failed to publish withdrawal completed event", "error", err, "withdrawal_id", w.ID)
		}
	}
	return nil
}
