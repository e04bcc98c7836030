package ledger

import (
	"time"

	ledgerdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/ledger"
	"github.com/shopspring/decimal"
)

type BalanceView struct {
	MerchantID     string          `json:"merchantId"`
	Balance        decimal.Decimal `json:"balance"`
	PendingBalance decimal.Decimal `json:"pendingBalance"`
	TotalBalance   decimal.Decimal `json:"totalBalance"`
	LastUpdated    *time.Time      `json:"lastUpdated,omitempty"`
}

func newBalanceView(b *ledgerdm.MerchantBalance) *BalanceView {
	view := &BalanceView{
		MerchantID:     b.MerchantID,
		Balance:        b.Balance,
		PendingBalance: b.PendingBalance,
		TotalBalance:   b.Balance.Add(b.PendingBalance),
	}
	if !b.LastUpdated.IsZero() {
		lu := b.LastUpdated
		view.LastUpdated = &lu
	}
	return view
}

type EntriesResponse struct {
	Entries []*ledgerdm.Entry `json:"entries"`
}
