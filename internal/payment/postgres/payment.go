package postgres

import (
	"context"
	stderrors "errors"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/merchant-settlement/internal/payment"
	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

var _ paymentpkg.RepositoryAPI = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return paymentpkg.ErrDuplicateTransaction
	}
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) RecordBooking(ctx context.Context, paymentID, serviceID string) (bool, error) {
	recorded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&payment.Payment{}).
			Where("id = ? AND booking_recorded = ?", paymentID, false).
			Update("booking_recorded", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&catalogdm.Service{}).
			Where("id = ?", serviceID).
			UpdateColumn("bookings_count", gorm.Expr("bookings_count + ?", 1)).Error; err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func (r *PaymentRepository) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND release_time <= ?", payment.StatusPending, now).
		Order("release_time ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// MarkCompleted flips a PENDING payment to COMPLETED. It reports false when
// the payment was not PENDING anymore.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, paymentID string, releasedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&payment.Payment{}).
		Where("id = ? AND status = ?", paymentID, payment.StatusPending).
		Updates(map[string]interface{}{
			"status":      payment.StatusCompleted,
			"released_at": releasedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
