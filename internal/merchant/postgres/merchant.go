package postgres

import (
	"context"
	stderrors "errors"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/merchant"
	"gorm.io/gorm"
)

type MerchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

var _ merchant.RepositoryAPI = (*MerchantRepository)(nil)

func (r *MerchantRepository) GetByID(ctx context.Context, id string) (*merchantdm.Merchant, error) {
	var m merchantdm.Merchant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrMerchantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MerchantRepository) List(ctx context.Context, status string) ([]*merchantdm.Merchant, error) {
	var merchants []*merchantdm.Merchant
	q := r.db.WithContext(ctx).Where("role = ?", errors.RoleMerchant)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Find(&merchants).Error
	return merchants, err
}

func (r *MerchantRepository) UpdateStatus(ctx context.Context, id, status string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&merchantdm.Merchant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrMerchantNotFound
	}
	return nil
}
