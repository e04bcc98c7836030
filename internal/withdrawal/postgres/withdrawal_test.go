package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	withdrawaldm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
	withdrawalpkg "github.com/frahmantamala/merchant-settlement/internal/withdrawal"
)

var columnNames = []string{
	"id", "merchant_id", "amount", "email", "status",
	"payout_batch_id", "failure_reason", "attempts", "created_at", "updated_at",
}

func newMock(t *testing.T) (*WithdrawalRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithdrawalRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestWithdrawalRepository_Create(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := &withdrawaldm.Withdrawal{
		ID:         "withdrawal_01HZX",
		MerchantID: "merchant-1",
		Amount:     decimal.RequireFromString("40"),
		Email:      "merchant@example.com",
		Status:     withdrawaldm.StatusPending,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO withdrawals")).
		WithArgs("withdrawal_01HZX", "merchant-1", "40", "merchant@example.com", withdrawaldm.StatusPending,
			sqlmock.AnyArg(), sqlmock.AnyArg(), 1, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), w)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepository_GetByID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(getByIDQuery)).
			WithArgs("withdrawal_1").
			WillReturnRows(sqlmock.NewRows(columnNames).
				AddRow("withdrawal_1", "merchant-1", "40.00", "merchant@example.com", withdrawaldm.StatusPayoutSent,
					"BATCH-1", nil, 1, now, now))

		w, err := repo.GetByID(context.Background(), "withdrawal_1")

		require.NoError(t, err)
		assert.Equal(t, "merchant-1", w.MerchantID)
		assert.Equal(t, "40.00", w.Amount.StringFixed(2))
		assert.Equal(t, "BATCH-1", w.BatchID())
		assert.Nil(t, w.FailureReason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(getByIDQuery)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		w, err := repo.GetByID(context.Background(), "missing")

		assert.Nil(t, w)
		assert.ErrorIs(t, err, errors.ErrWithdrawalNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithdrawalRepository_SumInFlight(t *testing.T) {
	tests := []struct {
		name     string
		returned interface{}
		expected string
	}{
		{name: "no withdrawals", returned: "0", expected: "0.00"},
		{name: "pending and sent", returned: "55.25", expected: "55.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			mock.ExpectQuery(regexp.QuoteMeta(sumInFlightQuery)).
				WithArgs("merchant-1", withdrawaldm.StatusPending, withdrawaldm.StatusPayoutSent).
				WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(tt.returned))

			sum, err := repo.SumInFlight(context.Background(), "merchant-1")

			require.NoError(t, err)
			assert.Equal(t, tt.expected, sum.StringFixed(2))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithdrawalRepository_ListForReconcile(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	staleBefore := now.Add(-10 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(listForReconcileQuery)).
		WithArgs(withdrawaldm.StatusPayoutSent, withdrawaldm.StatusPending, staleBefore, 50).
		WillReturnRows(sqlmock.NewRows(columnNames).
			AddRow("withdrawal_1", "merchant-1", "10", "a@example.com", withdrawaldm.StatusPending, nil, nil, 1, now.Add(-time.Hour), now).
			AddRow("withdrawal_2", "merchant-2", "20", "b@example.com", withdrawaldm.StatusPayoutSent, "BATCH-2", nil, 1, now, now))

	list, err := repo.ListForReconcile(context.Background(), staleBefore, 50)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "withdrawal_1", list[0].ID)
	assert.Equal(t, withdrawaldm.StatusPayoutSent, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepository_Transitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		query    string
		args     []interface{}
		affected int64
		exists   *bool
		run      func(r *WithdrawalRepository) error
		expected error
	}{
		{
			name:     "payout sent",
			query:    markPayoutSentQuery,
			args:     []interface{}{withdrawaldm.StatusPayoutSent, "BATCH-1", now, "withdrawal_1", withdrawaldm.StatusPending},
			affected: 1,
			run: func(r *WithdrawalRepository) error {
				return r.MarkPayoutSent(context.Background(), "withdrawal_1", "BATCH-1", now)
			},
		},
		{
			name:     "completed",
			query:    markCompletedQuery,
			args:     []interface{}{withdrawaldm.StatusCompleted, now, "withdrawal_1", withdrawaldm.StatusPayoutSent},
			affected: 1,
			run: func(r *WithdrawalRepository) error {
				return r.MarkCompleted(context.Background(), "withdrawal_1", now)
			},
		},
		{
			name:     "failed from wrong status",
			query:    markFailedQuery,
			args:     []interface{}{withdrawaldm.StatusFailed, "declined", now, "withdrawal_1", withdrawaldm.StatusPending},
			affected: 0,
			exists:   boolPtr(true),
			run: func(r *WithdrawalRepository) error {
				return r.MarkFailed(context.Background(), "withdrawal_1", "declined", now)
			},
			expected: withdrawalpkg.ErrStaleTransition,
		},
		{
			name:     "completed on missing withdrawal",
			query:    markCompletedQuery,
			args:     []interface{}{withdrawaldm.StatusCompleted, now, "missing", withdrawaldm.StatusPayoutSent},
			affected: 0,
			exists:   boolPtr(false),
			run: func(r *WithdrawalRepository) error {
				return r.MarkCompleted(context.Background(), "missing", now)
			},
			expected: errors.ErrWithdrawalNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(tt.query)).
				WithArgs(toDriverArgs(tt.args)...).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.exists != nil {
				mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(*tt.exists))
			}

			err := tt.run(repo)

			if tt.expected == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expected)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithdrawalRepository_IncrementAttempts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("increments", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(incrementAttemptsQuery)).
			WithArgs(now, "withdrawal_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.IncrementAttempts(context.Background(), "withdrawal_1", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(incrementAttemptsQuery)).
			WithArgs(now, "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.IncrementAttempts(context.Background(), "missing", now), errors.ErrWithdrawalNotFound)
	})
}

func boolPtr(b bool) *bool {
	return &b
}

func toDriverArgs(args []interface{}) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
