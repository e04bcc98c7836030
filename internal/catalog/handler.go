package catalog

import (
	"context"
	"net/http"

	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	GetService(ctx context.Context, id string) (*catalogdm.Service, error)
	ListMerchantServices(ctx context.Context, merchantID string) ([]*catalogdm.Service, error)
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

// ListMerchantServices handles GET /api/v1/merchants/{merchantID}/services
func (h *Handler) ListMerchantServices(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")

	services, err := h.Service.ListMerchantServices(r.Context(), merchantID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ServicesResponse{Services: services})
}
