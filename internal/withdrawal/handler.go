package withdrawal

import (
	"context"
	"encoding/json"
	"net/http"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	withdrawaldm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
)

type ServiceAPI interface {
	RequestWithdrawal(ctx context.Context, merchantID string, amount decimal.Decimal, email string) (*withdrawaldm.Withdrawal, error)
	ListWithdrawals(ctx context.Context, merchantID string, limit int) ([]*withdrawaldm.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (*withdrawaldm.Withdrawal, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// RequestWithdrawal handles POST /api/v1/me/withdrawals
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	principal, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.Service.RequestWithdrawal(r.Context(), principal.UserID, req.Amount, req.Email)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status == withdrawaldm.StatusPayoutSent {
		status = http.StatusAccepted
	}
	h.WriteJSON(w, status, result)
}

// Withdraw handles POST /api/withdraw, the payout endpoint the merchant
// dashboard used before withdrawals had their own resource.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.Service.RequestWithdrawal(r.Context(), principal.UserID, req.Amount, req.Email)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	batchID := result.BatchID()
	if batchID == "" {
		batchID = result.ID
	}
	h.WriteJSON(w, http.StatusOK, PayoutResponse{BatchID: batchID})
}

// ListMyWithdrawals handles GET /api/v1/me/withdrawals
func (h *Handler) ListMyWithdrawals(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrAuthRequired)
		return
	}

	list, err := h.Service.ListWithdrawals(r.Context(), principal.UserID, h.QueryInt(r, "limit", defaultListLimit, 100))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, WithdrawalsResponse{Withdrawals: list})
}

// GetMyWithdrawal handles GET /api/v1/me/withdrawals/{withdrawalID}
func (h *Handler) GetMyWithdrawal(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrAuthRequired)
		return
	}

	result, err := h.Service.GetWithdrawal(r.Context(), chi.URLParam(r, "withdrawalID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if result.MerchantID != principal.UserID {
		h.HandleError(w, errors.ErrWithdrawalNotFound)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*errors.Principal, *WithdrawRequest, bool) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrAuthRequired)
		return nil, nil, false
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("Withdraw: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return nil, nil, false
	}
	req.normalize()
	return principal, &req, true
}
