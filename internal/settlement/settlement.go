package settlement

import (
	"context"
	"time"

	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	"github.com/shopspring/decimal"
)

// ScanLockKey guards the due-payment scan so only one instance dispatches a
// batch at a time.
const ScanLockKey = "settlement:scan"

type PaymentStore interface {
	GetByID(ctx context.Context, id string) (*payment.Payment, error)
	ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)
	MarkCompleted(ctx context.Context, paymentID string, releasedAt time.Time) (bool, error)
}

type LedgerAPI interface {
	IncreasePending(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error
	ReleaseFunds(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error
}

type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}
