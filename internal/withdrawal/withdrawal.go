package withdrawal

import (
	"context"
	stderrors "errors"
	"time"

	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	gatewaydm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/shopspring/decimal"
)

// ErrStaleTransition is returned when a status update finds the withdrawal in
// a different state than the one the transition starts from.
var ErrStaleTransition = stderrors.New("withdrawal is not in the expected status")

type RepositoryAPI interface {
	Create(ctx context.Context, w *withdrawal.Withdrawal) error
	GetByID(ctx context.Context, id string) (*withdrawal.Withdrawal, error)
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*withdrawal.Withdrawal, error)
	// SumInFlight totals the merchant's PENDING and PAYOUT_SENT withdrawals.
	SumInFlight(ctx context.Context, merchantID string) (decimal.Decimal, error)
	// ListForReconcile returns every PAYOUT_SENT withdrawal and the PENDING ones
	// created before staleBefore.
	ListForReconcile(ctx context.Context, staleBefore time.Time, limit int) ([]*withdrawal.Withdrawal, error)
	MarkPayoutSent(ctx context.Context, id, batchID string, now time.Time) error
	MarkCompleted(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id, reason string, now time.Time) error
	IncrementAttempts(ctx context.Context, id string, now time.Time) error
}

type LedgerAPI interface {
	DebitForWithdrawal(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error
	GetBalance(ctx context.Context, merchantID string) (*ledger.BalanceView, error)
}

type PayoutAPI interface {
	CreatePayout(ctx context.Context, req *gatewaydm.PayoutRequest) (*gatewaydm.PayoutResult, error)
	GetPayoutBatch(ctx context.Context, batchID string) (*gatewaydm.PayoutResult, error)
}

type MerchantAPI interface {
	GetByID(ctx context.Context, id string) (*merchantdm.Merchant, error)
}

// Locker serialises work on a key across processes.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}
