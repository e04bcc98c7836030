package withdrawal

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending    = "PENDING"
	StatusPayoutSent = "PAYOUT_SENT"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Withdrawal tracks one payout. PAYOUT_SENT means the money left through the
// processor but the balance debit has not been committed yet.
type Withdrawal struct {
	ID            string          `json:"id" db:"id"`
	MerchantID    string          `json:"merchantId" db:"merchant_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Email         string          `json:"email" db:"email"`
	Status        string          `json:"status" db:"status"`
	PayoutBatchID *string         `json:"batchId,omitempty" db:"payout_batch_id"`
	FailureReason *string         `json:"failureReason,omitempty" db:"failure_reason"`
	Attempts      int             `json:"attempts" db:"attempts"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

func (w *Withdrawal) IsInFlight() bool {
	return w.Status == StatusPending || w.Status == StatusPayoutSent
}

func (w *Withdrawal) BatchID() string {
	if w.PayoutBatchID == nil {
		return ""
	}
	return *w.PayoutBatchID
}
