package ledger

import (
	"context"
	stderrors "errors"
	"time"

	ledgerdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/ledger"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound    = stderrors.New("merchant balance not found")
	ErrDuplicateReference = stderrors.New("ledger reference already applied")
)

// RepositoryAPI is the storage port for merchant balances. It is the only
// writer of merchant_balances.
type RepositoryAPI interface {
	Get(ctx context.Context, merchantID string) (*ledgerdm.MerchantBalance, error)
	CreateIfMissing(ctx context.Context, merchantID string, now time.Time) error
	HasReference(ctx context.Context, reference string) (bool, error)
	// Commit stores entry and swaps the balance row from expectedVersion to
	// expectedVersion+1 in one transaction. It returns ErrDuplicateReference
	// when entry.Reference exists and internal.ErrConcurrencyConflict when the
	// row moved on.
	Commit(ctx context.Context, next *ledgerdm.MerchantBalance, expectedVersion int64, entry *ledgerdm.Entry) error
	ListEntries(ctx context.Context, merchantID string, limit int) ([]*ledgerdm.Entry, error)
}

// LedgerAPI is what other domains depend on.
type LedgerAPI interface {
	IncreasePending(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error
	ReleaseFunds(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error
	DebitForWithdrawal(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error
	EnsureAccount(ctx context.Context, merchantID string) error
	GetBalance(ctx context.Context, merchantID string) (*BalanceView, error)
}

func CaptureReference(transactionID string) string {
	return "capture:" + transactionID
}

func ReleaseReference(paymentID string) string {
	return "release:" + paymentID
}

func WithdrawalReference(withdrawalID string) string {
	return "withdrawal:" + withdrawalID
}
