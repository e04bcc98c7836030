package postgres

import (
	"context"
	stderrors "errors"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	ledgerdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ ledger.RepositoryAPI = (*LedgerRepository)(nil)

func (r *LedgerRepository) Get(ctx context.Context, merchantID string) (*ledgerdm.MerchantBalance, error) {
	var b ledgerdm.MerchantBalance
	err := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).First(&b).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *LedgerRepository) CreateIfMissing(ctx context.Context, merchantID string, now time.Time) error {
	b := ledgerdm.MerchantBalance{
		MerchantID:     merchantID,
		Balance:        decimal.Zero,
		PendingBalance: decimal.Zero,
		Version:        0,
		LastUpdated:    now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&b).Error
}

func (r *LedgerRepository) HasReference(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ledgerdm.Entry{}).Where("reference = ?", reference).Count(&count).Error
	return count > 0, err
}

func (r *LedgerRepository) Commit(ctx context.Context, next *ledgerdm.MerchantBalance, expectedVersion int64, entry *ledgerdm.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ledgerdm.Entry{}).Where("reference = ?", entry.Reference).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ledger.ErrDuplicateReference
		}

		if err := tx.Create(entry).Error; err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return ledger.ErrDuplicateReference
			}
			return err
		}

		res := tx.Model(&ledgerdm.MerchantBalance{}).
			Where("merchant_id = ? AND version = ?", next.MerchantID, expectedVersion).
			Updates(map[string]interface{}{
				"balance":         next.Balance,
				"pending_balance": next.PendingBalance,
				"version":         expectedVersion + 1,
				"last_updated":    next.LastUpdated,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.ErrConcurrencyConflict
		}
		return nil
	})
	if err != nil {
		return err
	}
	next.Version = expectedVersion + 1
	return nil
}

func (r *LedgerRepository) ListEntries(ctx context.Context, merchantID string, limit int) ([]*ledgerdm.Entry, error) {
	var entries []*ledgerdm.Entry
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
