package postgres

import (
	"context"
	stderrors "errors"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/catalog"
	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	"gorm.io/gorm"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

var _ catalog.RepositoryAPI = (*CatalogRepository)(nil)

func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalogdm.Service, error) {
	var svc catalogdm.Service
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&svc).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *CatalogRepository) ListByMerchant(ctx context.Context, merchantID string) ([]*catalogdm.Service, error) {
	var services []*catalogdm.Service
	err := r.db.WithContext(ctx).
		Where("user_id = ?", merchantID).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&services).Error
	return services, err
}
