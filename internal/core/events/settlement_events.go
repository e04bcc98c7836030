package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentCaptured     = "payment.captured"
	EventTypePaymentReleased     = "payment.released"
	EventTypeWithdrawalCompleted = "withdrawal.completed"
	EventTypeWithdrawalFailed    = "withdrawal.failed"
	EventTypeMerchantApproved    = "merchant.approved"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type PaymentCapturedEvent struct {
	BaseEvent
	PaymentID     string          `json:"payment_id"`
	TransactionID string          `json:"transaction_id"`
	MerchantID    string          `json:"merchant_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReleaseTime   time.Time       `json:"release_time"`
}

func NewPaymentCapturedEvent(paymentID, transactionID, merchantID string, amount decimal.Decimal, releaseTime time.Time) *PaymentCapturedEvent {
	return &PaymentCapturedEvent{
		BaseEvent: newBase(EventTypePaymentCaptured, map[string]interface{}{
			"payment_id":     paymentID,
			"transaction_id": transactionID,
			"merchant_id":    merchantID,
			"amount":         amount.String(),
			"release_time":   releaseTime,
		}),
		PaymentID:     paymentID,
		TransactionID: transactionID,
		MerchantID:    merchantID,
		Amount:        amount,
		ReleaseTime:   releaseTime,
	}
}

type PaymentReleasedEvent struct {
	BaseEvent
	PaymentID  string          `json:"payment_id"`
	MerchantID string          `json:"merchant_id"`
	Amount     decimal.Decimal `json:"amount"`
}

func NewPaymentReleasedEvent(paymentID, merchantID string, amount decimal.Decimal) *PaymentReleasedEvent {
	return &PaymentReleasedEvent{
		BaseEvent: newBase(EventTypePaymentReleased, map[string]interface{}{
			"payment_id":  paymentID,
			"merchant_id": merchantID,
			"amount":      amount.String(),
		}),
		PaymentID:  paymentID,
		MerchantID: merchantID,
		Amount:     amount,
	}
}

type WithdrawalCompletedEvent struct {
	BaseEvent
	WithdrawalID string          `json:"withdrawal_id"`
	MerchantID   string          `json:"merchant_id"`
	Amount       decimal.Decimal `json:"amount"`
	BatchID      string          `json:"batch_id"`
}

func NewWithdrawalCompletedEvent(withdrawalID, merchantID string, amount decimal.Decimal, batchID string) *WithdrawalCompletedEvent {
	return &WithdrawalCompletedEvent{
		BaseEvent: newBase(EventTypeWithdrawalCompleted, map[string]interface{}{
			"withdrawal_id": withdrawalID,
			"merchant_id":   merchantID,
			"amount":        amount.String(),
			"batch_id":      batchID,
		}),
		WithdrawalID: withdrawalID,
		MerchantID:   merchantID,
		Amount:       amount,
		BatchID:      batchID,
	}
}

type WithdrawalFailedEvent struct {
	BaseEvent
	WithdrawalID  string          `json:"withdrawal_id"`
	MerchantID    string          `json:"merchant_id"`
	Amount        decimal.Decimal `json:"amount"`
	FailureReason string          `json:"failure_reason"`
}

func NewWithdrawalFailedEvent(withdrawalID, merchantID string, amount decimal.Decimal, failureReason string) *WithdrawalFailedEvent {
	return &WithdrawalFailedEvent{
		BaseEvent: newBase(EventTypeWithdrawalFailed, map[string]interface{}{
			"withdrawal_id":  withdrawalID,
			"merchant_id":    merchantID,
			"amount":         amount.String(),
			"failure_reason": failureReason,
		}),
		WithdrawalID:  withdrawalID,
		MerchantID:    merchantID,
		Amount:        amount,
		FailureReason: failureReason,
	}
}

type MerchantApprovedEvent struct {
	BaseEvent
	MerchantID string `json:"merchant_id"`
	ApprovedBy string `json:"approved_by"`
}

func NewMerchantApprovedEvent(merchantID, approvedBy string) *MerchantApprovedEvent {
	return &MerchantApprovedEvent{
		BaseEvent: newBase(EventTypeMerchantApproved, map[string]interface{}{
			"merchant_id": merchantID,
			"approved_by": approvedBy,
		}),
		MerchantID: merchantID,
		ApprovedBy: approvedBy,
	}
}
