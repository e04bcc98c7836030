package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindCapture    = "CAPTURE"
	KindRelease    = "RELEASE"
	KindWithdrawal = "WITHDRAWAL"
)

// MerchantBalance is the single balance row per merchant. Version is bumped on
// every committed mutation and guards the compare-and-swap update.
type MerchantBalance struct {
	MerchantID     string          `json:"merchantId" gorm:"column:merchant_id;primaryKey"`
	Balance        decimal.Decimal `json:"balance" gorm:"column:balance;type:numeric(14,2);not null"`
	PendingBalance decimal.Decimal `json:"pendingBalance" gorm:"column:pending_balance;type:numeric(14,2);not null"`
	Version        int64           `json:"-" gorm:"column:version;not null;default:0"`
	LastUpdated    time.Time       `json:"lastUpdated" gorm:"column:last_updated;not null"`
}

func (MerchantBalance) TableName() string {
	return "merchant_balances"
}

// Entry is an append-only journal row. Reference is unique and makes every
// mutation apply at most once.
type Entry struct {
	ID           string          `json:"id" gorm:"column:id;primaryKey"`
	MerchantID   string          `json:"merchantId" gorm:"column:merchant_id;not null;index"`
	Reference    string          `json:"reference" gorm:"column:reference;not null;uniqueIndex"`
	Kind         string          `json:"kind" gorm:"column:kind;not null"`
	Amount       decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(14,2);not null"`
	BalanceAfter decimal.Decimal `json:"balanceAfter" gorm:"column:balance_after;type:numeric(14,2);not null"`
	PendingAfter decimal.Decimal `json:"pendingAfter" gorm:"column:pending_after;type:numeric(14,2);not null"`
	CreatedAt    time.Time       `json:"createdAt" gorm:"column:created_at"`
}

func (Entry) TableName() string {
	return "ledger_entries"
}
