package withdrawal

import (
	"strings"

	withdrawaldm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
	"github.com/shopspring/decimal"
)

// WithdrawRequest is the body of both POST /api/v1/me/withdrawals and the
// older POST /api/withdraw.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Email  string          `json:"email"`
}

func (r *WithdrawRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

type WithdrawalsResponse struct {
	Withdrawals []*withdrawaldm.Withdrawal `json:"withdrawals"`
}

// PayoutResponse is the reply of POST /api/withdraw.
type PayoutResponse struct {
	BatchID string `json:"batchId"`
}
