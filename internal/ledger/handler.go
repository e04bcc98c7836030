package ledger

import (
	"context"
	"net/http"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	ledgerdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
)

type ReadAPI interface {
	GetBalance(ctx context.Context, merchantID string) (*BalanceView, error)
	ListEntries(ctx context.Context, merchantID string, limit int) ([]*ledgerdm.Entry, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ReadAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ReadAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// GetMyBalance handles GET /api/v1/me/balance
func (h *Handler) GetMyBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrAuthRequired)
		return
	}

	view, err := h.Service.GetBalance(r.Context(), principal.UserID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// ListMyEntries handles GET /api/v1/me/ledger
func (h *Handler) ListMyEntries(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrAuthRequired)
		return
	}

	entries, err := h.Service.ListEntries(r.Context(), principal.UserID, h.QueryInt(r, "limit", 50, 200))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*ledgerdm.Entry{}
	}
	h.WriteJSON(w, http.StatusOK, EntriesResponse{Entries: entries})
}
