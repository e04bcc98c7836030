package merchant

import "time"

const (
	StatusIncomplete = "incomplete"
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
)

type Merchant struct {
	ID          string    `json:"id" gorm:"column:id;primaryKey"`
	Email       string    `json:"email" gorm:"column:email;not null;uniqueIndex"`
	FullName    string    `json:"fullName" gorm:"column:full_name"`
	BrandName   string    `json:"brandName" gorm:"column:brand_name"`
	PaypalEmail string    `json:"paypalEmail" gorm:"column:paypal_email"`
	Role        string    `json:"role" gorm:"column:role;not null;default:merchant"`
	Status      string    `json:"status" gorm:"column:status;not null;default:incomplete"`
	CreatedAt   time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

func (Merchant) TableName() string {
	return "merchants"
}
