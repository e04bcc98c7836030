package merchant

import (
	"context"
	"time"

	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*merchantdm.Merchant, error)
	// List returns merchants with the given status, or all of them when status
	// is empty.
	List(ctx context.Context, status string) ([]*merchantdm.Merchant, error)
	UpdateStatus(ctx context.Context, id, status string, now time.Time) error
}

type LedgerAPI interface {
	EnsureAccount(ctx context.Context, merchantID string) error
}

type MerchantsResponse struct {
	Merchants []*merchantdm.Merchant `json:"merchants"`
}
