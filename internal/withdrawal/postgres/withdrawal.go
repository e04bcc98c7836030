package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	withdrawaldm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
	withdrawalpkg "github.com/frahmantamala/merchant-settlement/internal/withdrawal"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	columns = `id, merchant_id, amount, email, status, payout_batch_id, failure_reason, attempts, created_at, updated_at`

	insertQuery = `INSERT INTO withdrawals (` + columns + `)
VALUES (:id, :merchant_id, :amount, :email, :status, :payout_batch_id, :failure_reason, :attempts, :created_at, :updated_at)`

	getByIDQuery = `SELECT ` + columns + ` FROM withdrawals WHERE id = $1`

	listByMerchantQuery = `SELECT ` + columns + ` FROM withdrawals
WHERE merchant_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

	sumInFlightQuery = `SELECT COALESCE(SUM(amount), 0) FROM withdrawals
WHERE merchant_id = $1 AND status IN ($2, $3)`

	listForReconcileQuery = `SELECT ` + columns + ` FROM withdrawals
WHERE status = $1 OR (status = $2 AND created_at < $3)
ORDER BY created_at ASC
LIMIT $4`

	markPayoutSentQuery = `UPDATE withdrawals
SET status = $1, payout_batch_id = NULLIF($2, ''), updated_at = $3
WHERE id = $4 AND status = $5`

	markCompletedQuery = `UPDATE withdrawals
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4`

	markFailedQuery = `UPDATE withdrawals
SET status = $1, failure_reason = $2, updated_at = $3
WHERE id = $4 AND status = $5`

	incrementAttemptsQuery = `UPDATE withdrawals SET attempts = attempts + 1, updated_at = $1 WHERE id = $2`

	existsQuery = `SELECT EXISTS (SELECT 1 FROM withdrawals WHERE id = $1)`
)

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{
		db: db,
	}
}

var _ withdrawalpkg.RepositoryAPI = (*WithdrawalRepository)(nil)

func (r *WithdrawalRepository) Create(ctx context.Context, w *withdrawaldm.Withdrawal) error {
	if _, err := r.db.NamedExecContext(ctx, insertQuery, w); err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", err)
	}
	return nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*withdrawaldm.Withdrawal, error) {
	var w withdrawaldm.Withdrawal
	err := r.db.GetContext(ctx, &w, getByIDQuery, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*withdrawaldm.Withdrawal, error) {
	var list []*withdrawaldm.Withdrawal
	if err := r.db.SelectContext(ctx, &list, listByMerchantQuery, merchantID, limit); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *WithdrawalRepository) SumInFlight(ctx context.Context, merchantID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.GetContext(ctx, &sum, sumInFlightQuery, merchantID, withdrawaldm.StatusPending, withdrawaldm.StatusPayoutSent)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (r *WithdrawalRepository) ListForReconcile(ctx context.Context, staleBefore time.Time, limit int) ([]*withdrawaldm.Withdrawal, error) {
	var list []*withdrawaldm.Withdrawal
	err := r.db.SelectContext(ctx, &list, listForReconcileQuery,
		withdrawaldm.StatusPayoutSent, withdrawaldm.StatusPending, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *WithdrawalRepository) MarkPayoutSent(ctx context.Context, id, batchID string, now time.Time) error {
	return r.transition(ctx, id, markPayoutSentQuery,
		withdrawaldm.StatusPayoutSent, batchID, now, id, withdrawaldm.StatusPending)
}

func (r *WithdrawalRepository) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	return r.transition(ctx, id, markCompletedQuery,
		withdrawaldm.StatusCompleted, now, id, withdrawaldm.StatusPayoutSent)
}

func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id, reason string, now time.Time) error {
	return r.transition(ctx, id, markFailedQuery,
		withdrawaldm.StatusFailed, reason, now, id, withdrawaldm.StatusPending)
}

func (r *WithdrawalRepository) IncrementAttempts(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, incrementAttemptsQuery, now, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrWithdrawalNotFound
	}
	return nil
}

// transition runs a conditional status update. Zero affected rows means the
// withdrawal is missing or already left the source status.
func (r *WithdrawalRepository) transition(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, existsQuery, id); err != nil {
		return err
	}
	if !exists {
		return errors.ErrWithdrawalNotFound
	}
	return withdrawalpkg.ErrStaleTransition
}
