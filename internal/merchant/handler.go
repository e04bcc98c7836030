package merchant

import (
	"context"
	"net/http"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Get(ctx context.Context, id string) (*merchantdm.Merchant, error)
	ListMerchants(ctx context.Context, status string) ([]*merchantdm.Merchant, error)
	Approve(ctx context.Context, merchantID, approvedBy string) (*merchantdm.Merchant, error)
	Reject(ctx context.Context, merchantID, rejectedBy string) (*merchantdm.Merchant, error)
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

// ListMerchants handles GET /api/v1/admin/merchants?status=
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	merchants, err := h.Service.ListMerchants(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MerchantsResponse{Merchants: merchants})
}

// Approve handles PATCH /api/v1/admin/merchants/{merchantID}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Service.Approve)
}

// Reject handles PATCH /api/v1/admin/merchants/{merchantID}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Service.Reject)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, merchantID, actor string) (*merchantdm.Merchant, error)) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrAuthRequired)
		return
	}

	m, err := op(r.Context(), chi.URLParam(r, "merchantID"), principal.UserID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, m)
}
