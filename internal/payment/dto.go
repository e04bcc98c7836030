package payment

import (
	"time"

	"github.com/frahmantamala/merchant-settlement/internal/core/common/validation"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	"github.com/shopspring/decimal"
)

// CaptureRequest is posted by the booking page after the processor captured
// the order.
type CaptureRequest struct {
	TransactionID    string          `json:"transactionId"`
	PayerName        string          `json:"payerName"`
	PaymentTime      *time.Time      `json:"paymentTime,omitempty"`
	CustomerName     string          `json:"customerName"`
	CustomerEmail    string          `json:"customerEmail"`
	SelectedDate     string          `json:"selectedDate"`
	SelectedTimeSlot string          `json:"selectedTimeSlot"`
	ServiceID        string          `json:"serviceId"`
	ServiceName      string          `json:"serviceName"`
	ServicePrice     decimal.Decimal `json:"servicePrice"`
	MerchantID       string          `json:"merchantId"`
}

func (r *CaptureRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("transactionId", r.TransactionID).Required().MaxLength(128)
	validator.Field("merchantId", r.MerchantID).Required()
	validator.Field("serviceId", r.ServiceID).Required()
	validator.Field("customerName", r.CustomerName).Required().MaxLength(200)
	validator.Field("customerEmail", r.CustomerEmail).Required().Email()
	validator.Field("selectedDate", r.SelectedDate).Required().Date()
	validator.Field("selectedTimeSlot", r.SelectedTimeSlot).Required().TimeSlot()
	validator.Field("servicePrice", r.ServicePrice).Positive().MaxDecimalPlaces(2)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (r *CaptureRequest) toPayment(id string, releaseTime, now time.Time) *payment.Payment {
	paymentTime := now
	if r.PaymentTime != nil && !r.PaymentTime.IsZero() {
		paymentTime = *r.PaymentTime
	}
	return &payment.Payment{
		ID:               id,
		TransactionID:    r.TransactionID,
		MerchantID:       r.MerchantID,
		ServiceID:        r.ServiceID,
		ServiceName:      r.ServiceName,
		ServicePrice:     r.ServicePrice,
		CustomerName:     r.CustomerName,
		CustomerEmail:    r.CustomerEmail,
		PayerName:        r.PayerName,
		SelectedDate:     r.SelectedDate,
		SelectedTimeSlot: r.SelectedTimeSlot,
		Status:           payment.StatusPending,
		PaymentTime:      paymentTime,
		ReleaseTime:      releaseTime,
	}
}

type ListResponse struct {
	Payments []*payment.Payment `json:"payments"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}
