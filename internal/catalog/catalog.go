package catalog

import (
	"context"

	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*catalogdm.Service, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*catalogdm.Service, error)
}

type ServicesResponse struct {
	Services []*catalogdm.Service `json:"services"`
}
