package payment

import (
	"context"
	"encoding/json"
	"net/http"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
)

type ServiceAPI interface {
	Capture(ctx context.Context, req *CaptureRequest) (*payment.Payment, error)
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	ListMerchantPayments(ctx context.Context, merchantID string, limit, offset int) ([]*payment.Payment, error)
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

// Capture handles POST /api/v1/payments/capture. The endpoint is public: the
// customer's browser calls it after the processor approved the order.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("Capture: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.Service.Capture(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p)
}

// ListMyPayments handles GET /api/v1/me/payments
func (h *Handler) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrAuthRequired)
		return
	}

	limit := h.QueryInt(r, "limit", 20, 100)
	offset := h.QueryInt(r, "offset", 0, 0)

	payments, err := h.Service.ListMerchantPayments(r.Context(), principal.UserID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if payments == nil {
		payments = []*payment.Payment{}
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{
		Payments: payments,
		Limit:    limit,
		Offset:   offset,
	})
}
