package payment

import (
	"context"
	stderrors "errors"
	"time"

	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	gatewaydm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/paymentgateway"
	"github.com/shopspring/decimal"
)

var ErrDuplicateTransaction = stderrors.New("payment with this transaction id already exists")

type RepositoryAPI interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id string) (*payment.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error)
	// RecordBooking marks the payment's booking as counted and increments the
	// service's bookings_count, once. It reports whether this call did it.
	RecordBooking(ctx context.Context, paymentID, serviceID string) (bool, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]*payment.Payment, error)
	ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)
	MarkCompleted(ctx context.Context, paymentID string, releasedAt time.Time) (bool, error)
}

type LedgerAPI interface {
	IncreasePending(ctx context.Context, merchantID string, amount decimal.Decimal, reference string) error
}

type CatalogAPI interface {
	GetService(ctx context.Context, id string) (*catalogdm.Service, error)
}

// OrderVerifier looks a capture up at the processor.
type OrderVerifier interface {
	GetOrder(ctx context.Context, orderID string) (*gatewaydm.Order, error)
}
