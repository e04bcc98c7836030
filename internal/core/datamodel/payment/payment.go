package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

// Payment is one captured checkout. It is created PENDING at capture and only
// ever flipped to COMPLETED by settlement.
type Payment struct {
	ID               string          `json:"id" gorm:"column:id;primaryKey"`
	TransactionID    string          `json:"transactionId" gorm:"column:transaction_id;not null;uniqueIndex"`
	MerchantID       string          `json:"merchantId" gorm:"column:merchant_id;not null;index"`
	ServiceID        string          `json:"serviceId" gorm:"column:service_id;not null"`
	ServiceName      string          `json:"serviceName" gorm:"column:service_name"`
	ServicePrice     decimal.Decimal `json:"servicePrice" gorm:"column:service_price;type:numeric(14,2);not null"`
	CustomerName     string          `json:"customerName" gorm:"column:customer_name"`
	CustomerEmail    string          `json:"customerEmail" gorm:"column:customer_email"`
	PayerName        string          `json:"payerName,omitempty" gorm:"column:payer_name"`
	SelectedDate     string          `json:"selectedDate" gorm:"column:selected_date;not null"`
	SelectedTimeSlot string          `json:"selectedTimeSlot" gorm:"column:selected_time_slot;not null"`
	Status           string          `json:"status" gorm:"column:status;not null;default:PENDING;index"`
	PaymentTime      time.Time       `json:"paymentTime" gorm:"column:payment_time;not null"`
	ReleaseTime      time.Time       `json:"releaseTime" gorm:"column:release_time;not null;index"`
	ReleasedAt       *time.Time      `json:"releasedAt,omitempty" gorm:"column:released_at"`
	BookingRecorded  bool            `json:"-" gorm:"column:booking_recorded;not null;default:false"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" gorm:"column:updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsReleased() bool {
	return p.Status == StatusCompleted
}
