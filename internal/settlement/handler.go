package settlement

import (
	"net/http"

	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/go-chi/chi"
)

type Handler struct {
	*transport.BaseHandler
	Service ReleaseAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ReleaseAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// Release handles POST /api/v1/admin/payments/{paymentID}/release
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	p, err := h.Service.Release(r.Context(), paymentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Release: payment released manually", "payment_id", p.ID, "merchant_id", p.MerchantID)
	h.WriteJSON(w, http.StatusOK, p)
}
