package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Service is a bookable offering owned by one merchant (UserID).
type Service struct {
	ID            string          `json:"id" gorm:"column:id;primaryKey"`
	UserID        string          `json:"userId" gorm:"column:user_id;not null;index"`
	ServiceName   string          `json:"serviceName" gorm:"column:service_name;not null"`
	Description   string          `json:"description" gorm:"column:description"`
	Price         decimal.Decimal `json:"price" gorm:"column:price;type:numeric(14,2);not null"`
	TimeSlots     []TimeSlot      `json:"timeSlots" gorm:"column:time_slots;type:jsonb;serializer:json"`
	Availability  map[string]bool `json:"availability" gorm:"column:availability;type:jsonb;serializer:json"`
	Order         int             `json:"order" gorm:"column:sort_order"`
	BookingsCount int64           `json:"bookingsCount" gorm:"column:bookings_count;not null;default:0"`
	ClicksCount   int64           `json:"clicksCount" gorm:"column:clicks_count;not null;default:0"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" gorm:"column:updated_at"`
}

func (Service) TableName() string {
	return "services"
}
