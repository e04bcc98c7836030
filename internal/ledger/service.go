package ledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/core/common/validation"
	ledgerdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

type mutation func(b *ledgerdm.MerchantBalance) error

type Service struct {
	repo    RepositoryAPI
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	backoff func() retry.Backoff
}

type Option func(*Service)

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBackoff overrides the retry policy used on compare-and-swap conflicts.
func WithBackoff(b func() retry.Backoff) Option {
	return func(s *Service) { s.backoff = b }
}

func DefaultBackoff() retry.Backoff {
	b := retry.NewExponential(5 * time.Millisecond)
	b = retry.WithJitterPercent(50, b)
	b = retry.WithCappedDuration(250*time.Millisecond, b)
	return retry.WithMaxRetries(10, b)
}

func NewService(repo RepositoryAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		backoff: DefaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IncreasePending credits a captured amount to the merchant's pending balance.
// The balance row is created on first use.
func (s *Service) IncreasePending(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error {
	if appErr := validation.ValidateAmount("amount", amount); appErr != nil {
		return appErr
	}
	return s.apply(ctx, merchantID, ledgerdm.KindCapture, amount, reference, func(b *ledgerdm.MerchantBalance) error {
		b.PendingBalance = b.PendingBalance.Add(amount)
		return nil
	})
}

// ReleaseFunds moves amount from pending to available balance.
func (s *Service) ReleaseFunds(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error {
	if appErr := validation.ValidateAmount("amount", amount); appErr != nil {
		return appErr
	}
	return s.apply(ctx, merchantID, ledgerdm.KindRelease, amount, reference, func(b *ledgerdm.MerchantBalance) error {
		if b.PendingBalance.LessThan(amount) {
			return errors.ErrInsufficientPendingFunds
		}
		b.PendingBalance = b.PendingBalance.Sub(amount)
		b.Balance = b.Balance.Add(amount)
		return nil
	})
}

// DebitForWithdrawal removes a paid-out amount from the available balance.
func (s *Service) DebitForWithdrawal(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error {
	if appErr := validation.ValidateAmount("amount", amount); appErr != nil {
		return appErr
	}
	return s.apply(ctx, merchantID, ledgerdm.KindWithdrawal, amount, reference, func(b *ledgerdm.MerchantBalance) error {
		if b.Balance.LessThan(amount) {
			return errors.ErrInsufficientBalance
		}
		b.Balance = b.Balance.Sub(amount)
		return nil
	})
}

func (s *Service) EnsureAccount(ctx context.Context, merchantID string) error {
	if merchantID == "" {
		return errors.NewValidationFieldError("merchant_id", "merchant_id is required", errors.ErrCodeValidationFailed)
	}
	if err := s.repo.CreateIfMissing(ctx, merchantID, s.now()); err != nil {
		s.logger.Error("failed to create merchant balance", "error", err, "merchant_id", merchantID)
		return fmt.Errorf("failed to create merchant balance: %w", err)
	}
	return nil
}

// GetBalance returns the merchant's balances. A merchant without a balance row
// reads as zero.
func (s *Service) GetBalance(ctx context.Context, merchantID string) (*BalanceView, error) {
	b, err := s.repo.Get(ctx, merchantID)
	if stderrors.Is(err, ErrAccountNotFound) {
		return newBalanceView(&ledgerdm.MerchantBalance{
			MerchantID:     merchantID,
			Balance:        decimal.Zero,
			PendingBalance: decimal.Zero,
		}), nil
	}
	if err != nil {
		s.logger.Error("failed to load merchant balance", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to load merchant balance: %w", err)
	}
	return newBalanceView(b), nil
}

func (s *Service) ListEntries(ctx context.Context, merchantID string, limit int) ([]*ledgerdm.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.repo.ListEntries(ctx, merchantID, limit)
	if err != nil {
		s.logger.Error("failed to list ledger entries", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// apply runs one read-modify-write cycle per attempt. Conflicts and storage
// failures are retried; domain rule violations are returned as is. A reference
// that was already applied turns the call into a no-op.
func (s *Service) apply(ctx context.Context, merchantID, kind string, amount decimal.Decimal, reference string, mutate mutation) error {
	if merchantID == "" {
		return errors.NewValidationFieldError("merchant_id", "merchant_id is required", errors.ErrCodeValidationFailed)
	}
	if reference == "" {
		return errors.NewValidationFieldError("reference", "reference is required", errors.ErrCodeValidationFailed)
	}

	duplicate := false
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		applied, err := s.repo.HasReference(ctx, reference)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to check ledger reference: %w", err))
		}
		if applied {
			duplicate = true
			return nil
		}

		current, err := s.load(ctx, merchantID)
		if err != nil {
			return retry.RetryableError(err)
		}

		next := *current
		if err := mutate(&next); err != nil {
			// A concurrent call with the same reference may have committed
			// between the reference check and the read.
			if applied, _ := s.repo.HasReference(ctx, reference); applied {
				duplicate = true
				return nil
			}
			return err
		}
		next.LastUpdated = s.now()

		entry := &ledgerdm.Entry{
			ID:           uuid.NewString(),
			MerchantID:   merchantID,
			Reference:    reference,
			Kind:         kind,
			Amount:       amount,
			BalanceAfter: next.Balance,
			PendingAfter: next.PendingBalance,
			CreatedAt:    next.LastUpdated,
		}

		err = s.repo.Commit(ctx, &next, current.Version, entry)
		switch {
		case err == nil:
			return nil
		case stderrors.Is(err, ErrDuplicateReference):
			duplicate = true
			return nil
		case stderrors.Is(err, errors.ErrConcurrencyConflict):
			s.metrics.LedgerConflict()
			s.logger.Debug("balance changed concurrently, retrying", "merchant_id", merchantID, "reference", reference)
			return retry.RetryableError(err)
		default:
			return retry.RetryableError(fmt.Errorf("failed to commit ledger mutation: %w", err))
		}
	})

	if err != nil {
		s.metrics.LedgerMutation(kind, "failed")
		if _, ok := errors.IsAppError(err); ok {
			s.logger.Warn("ledger mutation rejected", "error", err, "merchant_id", merchantID, "kind", kind, "amount", amount.String(), "reference", reference)
			return err
		}
		s.logger.Error("ledger mutation failed", "error", err, "merchant_id", merchantID, "kind", kind, "reference", reference)
		return err
	}

	if duplicate {
		s.metrics.LedgerMutation(kind, "duplicate")
		s.logger.Info("ledger mutation already applied", "merchant_id", merchantID, "kind", kind, "reference", reference)
		return nil
	}

	s.metrics.LedgerMutation(kind, "applied")
	s.logger.Info("ledger mutation applied", "merchant_id", merchantID, "kind", kind, "amount", amount.String(), "reference", reference)
	return nil
}

func (s *Service) load(ctx context.Context, merchantID string) (*ledgerdm.MerchantBalance, error) {
	b, err := s.repo.Get(ctx, merchantID)
	if stderrors.Is(err, ErrAccountNotFound) {
		if err := s.repo.CreateIfMissing(ctx, merchantID, s.now()); err != nil {
			return nil, fmt.Errorf("failed to create merchant balance: %w", err)
		}
		b, err = s.repo.Get(ctx, merchantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant balance: %w", err)
	}
	return b, nil
}
