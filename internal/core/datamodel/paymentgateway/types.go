package paymentgateway

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	BatchStatusPending    = "PENDING"
	BatchStatusProcessing = "PROCESSING"
	BatchStatusSuccess    = "SUCCESS"
	BatchStatusDenied     = "DENIED"
	BatchStatusCanceled   = "CANCELED"

	OrderStatusCompleted = "COMPLETED"
)

// PayoutRequest is a single-recipient payout. SenderBatchID is the idempotency
// key on the processor side.
type PayoutRequest struct {
	SenderBatchID string
	Amount        decimal.Decimal
	Currency      string
	Email         string
}

func (r *PayoutRequest) Validate() error {
	if r.SenderBatchID == "" {
		return errors.New("sender_batch_id is required")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

type PayoutResult struct {
	BatchID     string `json:"batchId"`
	BatchStatus string `json:"batchStatus"`
}

// Rejected reports whether the processor dropped the batch without paying.
func (r *PayoutResult) Rejected() bool {
	return r.BatchStatus == BatchStatusDenied || r.BatchStatus == BatchStatusCanceled
}

type Order struct {
	ID     string
	Status string
	Amount decimal.Decimal
	Payer  string
}
