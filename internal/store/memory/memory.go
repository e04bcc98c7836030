// Package memory keeps every collection in process memory behind the same
// repository ports the postgres packages implement. It backs the service
// specs and `server --storage=memory` for local demos.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/catalog"
	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	ledgerdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/ledger"
	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	withdrawaldm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/withdrawal"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/merchant"
	paymentpkg "github.com/frahmantamala/merchant-settlement/internal/payment"
	"github.com/frahmantamala/merchant-settlement/internal/withdrawal"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.Mutex

	balances    map[string]ledgerdm.MerchantBalance
	entries     []ledgerdm.Entry
	references  map[string]bool
	payments    map[string]payment.Payment
	byTx        map[string]string
	services    map[string]catalogdm.Service
	merchants   map[string]merchantdm.Merchant
	withdrawals map[string]withdrawaldm.Withdrawal
}

func New() *Store {
	return &Store{
		balances:    make(map[string]ledgerdm.MerchantBalance),
		references:  make(map[string]bool),
		payments:    make(map[string]payment.Payment),
		byTx:        make(map[string]string),
		services:    make(map[string]catalogdm.Service),
		merchants:   make(map[string]merchantdm.Merchant),
		withdrawals: make(map[string]withdrawaldm.Withdrawal),
	}
}

func (s *Store) Ledger() *LedgerRepository { return &LedgerRepository{s: s} }
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s: s} }
func (s *Store) Catalog() *CatalogRepository { return &CatalogRepository{s: s} }
func (s *Store) Merchants() *MerchantRepository { return &MerchantRepository{s: s} }
func (s *Store) Withdrawals() *WithdrawalRepository { return &WithdrawalRepository{s: s} }

// PutService seeds a catalog entry.
func (s *Store) PutService(svc *catalogdm.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = *svc
}

// PutMerchant seeds a merchant.
func (s *Store) PutMerchant(m *merchantdm.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[m.ID] = *m
}

type LedgerRepository struct{ s *Store }

var _ ledger.RepositoryAPI = (*LedgerRepository)(nil)

func (r *LedgerRepository) Get(_ context.Context, merchantID string) (*ledgerdm.MerchantBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[merchantID]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &b, nil
}

func (r *LedgerRepository) CreateIfMissing(_ context.Context, merchantID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.balances[merchantID]; ok {
		return nil
	}
	r.s.balances[merchantID] = ledgerdm.MerchantBalance{
		MerchantID:     merchantID,
		Balance:        decimal.Zero,
		PendingBalance: decimal.Zero,
		LastUpdated:    now,
	}
	return nil
}

func (r *LedgerRepository) HasReference(_ context.Context, reference string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.references[reference], nil
}

func (r *LedgerRepository) Commit(_ context.Context, next *ledgerdm.MerchantBalance, expectedVersion int64, entry *ledgerdm.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.references[entry.Reference] {
		return ledger.ErrDuplicateReference
	}
	current, ok := r.s.balances[next.MerchantID]
	if !ok || current.Version != expectedVersion {
		return errors.ErrConcurrencyConflict
	}
	stored := *next
	stored.Version = expectedVersion + 1
	r.s.balances[next.MerchantID] = stored
	r.s.references[entry.Reference] = true
	r.s.entries = append(r.s.entries, *entry)
	next.Version = stored.Version
	return nil
}

func (r *LedgerRepository) ListEntries(_ context.Context, merchantID string, limit int) ([]*ledgerdm.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*ledgerdm.Entry
	for i := len(r.s.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if r.s.entries[i].MerchantID == merchantID {
			e := r.s.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

type PaymentRepository struct{ s *Store }

var _ paymentpkg.RepositoryAPI = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(_ context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.byTx[p.TransactionID]; ok {
		return paymentpkg.ErrDuplicateTransaction
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.s.payments[p.ID] = *p
	r.s.byTx[p.TransactionID] = p.ID
	return nil
}

func (r *PaymentRepository) GetByID(_ context.Context, id string) (*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, errors.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	r.s.mu.Lock()
	id, ok := r.s.byTx[transactionID]
	r.s.mu.Unlock()
	if !ok {
		return nil, errors.ErrPaymentNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PaymentRepository) RecordBooking(_ context.Context, paymentID, serviceID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok || p.BookingRecorded {
		return false, nil
	}
	p.BookingRecorded = true
	r.s.payments[paymentID] = p
	if svc, ok := r.s.services[serviceID]; ok {
		svc.BookingsCount++
		r.s.services[serviceID] = svc
	}
	return true, nil
}

func (r *PaymentRepository) ListByMerchant(_ context.Context, merchantID string, limit, offset int) ([]*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*payment.Payment
	for _, p := range r.s.payments {
		if p.MerchantID == merchantID {
			cp := p
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *PaymentRepository) ListDueForRelease(_ context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*payment.Payment
	for _, p := range r.s.payments {
		if p.Status == payment.StatusPending && !p.ReleaseTime.After(now) {
			cp := p
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ReleaseTime.Before(due[j].ReleaseTime) })
	return page(due, limit, 0), nil
}

func (r *PaymentRepository) MarkCompleted(_ context.Context, paymentID string, releasedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok || p.Status != payment.StatusPending {
		return false, nil
	}
	p.Status = payment.StatusCompleted
	p.ReleasedAt = &releasedAt
	p.UpdatedAt = releasedAt
	r.s.payments[paymentID] = p
	return true, nil
}

type CatalogRepository struct{ s *Store }

var _ catalog.RepositoryAPI = (*CatalogRepository)(nil)

func (r *CatalogRepository) GetByID(_ context.Context, id string) (*catalogdm.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, errors.ErrServiceNotFound
	}
	return &svc, nil
}

func (r *CatalogRepository) ListByMerchant(_ context.Context, merchantID string) ([]*catalogdm.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*catalogdm.Service
	for _, svc := range r.s.services {
		if svc.UserID == merchantID {
			cp := svc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type MerchantRepository struct{ s *Store }

var _ merchant.RepositoryAPI = (*MerchantRepository)(nil)

func (r *MerchantRepository) GetByID(_ context.Context, id string) (*merchantdm.Merchant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.merchants[id]
	if !ok {
		return nil, errors.ErrMerchantNotFound
	}
	return &m, nil
}

func (r *MerchantRepository) List(_ context.Context, status string) ([]*merchantdm.Merchant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*merchantdm.Merchant
	for _, m := range r.s.merchants {
		if m.Role == errors.RoleSuperadmin {
			continue
		}
		if status == "" || strings.EqualFold(m.Status, status) {
			cp := m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MerchantRepository) UpdateStatus(_ context.Context, id, status string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.merchants[id]
	if !ok {
		return errors.ErrMerchantNotFound
	}
	m.Status = status
	m.UpdatedAt = now
	r.s.merchants[id] = m
	return nil
}

type WithdrawalRepository struct{ s *Store }

var _ withdrawal.RepositoryAPI = (*WithdrawalRepository)(nil)

func (r *WithdrawalRepository) Create(_ context.Context, w *withdrawaldm.Withdrawal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.withdrawals[w.ID] = *w
	return nil
}

func (r *WithdrawalRepository) GetByID(_ context.Context, id string) (*withdrawaldm.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, errors.ErrWithdrawalNotFound
	}
	return &w, nil
}

func (r *WithdrawalRepository) ListByMerchant(_ context.Context, merchantID string, limit int) ([]*withdrawaldm.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*withdrawaldm.Withdrawal
	for _, w := range r.s.withdrawals {
		if w.MerchantID == merchantID {
			cp := w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, 0), nil
}

func (r *WithdrawalRepository) SumInFlight(_ context.Context, merchantID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, w := range r.s.withdrawals {
		if w.MerchantID == merchantID && w.IsInFlight() {
			sum = sum.Add(w.Amount)
		}
	}
	return sum, nil
}

func (r *WithdrawalRepository) ListForReconcile(_ context.Context, staleBefore time.Time, limit int) ([]*withdrawaldm.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*withdrawaldm.Withdrawal
	for _, w := range r.s.withdrawals {
		if w.Status == withdrawaldm.StatusPayoutSent ||
			(w.Status == withdrawaldm.StatusPending && w.CreatedAt.Before(staleBefore)) {
			cp := w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (r *WithdrawalRepository) MarkPayoutSent(_ context.Context, id, batchID string, now time.Time) error {
	return r.transition(id, withdrawaldm.StatusPending, withdrawaldm.StatusPayoutSent, now, func(w *withdrawaldm.Withdrawal) {
		if batchID != "" {
			w.PayoutBatchID = &batchID
		}
	})
}

func (r *WithdrawalRepository) MarkCompleted(_ context.Context, id string, now time.Time) error {
	return r.transition(id, withdrawaldm.StatusPayoutSent, withdrawaldm.StatusCompleted, now, nil)
}

func (r *WithdrawalRepository) MarkFailed(_ context.Context, id, reason string, now time.Time) error {
	return r.transition(id, withdrawaldm.StatusPending, withdrawaldm.StatusFailed, now, func(w *withdrawaldm.Withdrawal) {
		w.FailureReason = &reason
	})
}

func (r *WithdrawalRepository) IncrementAttempts(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return errors.ErrWithdrawalNotFound
	}
	w.Attempts++
	w.UpdatedAt = now
	r.s.withdrawals[id] = w
	return nil
}

func (r *WithdrawalRepository) transition(id, from, to string, now time.Time, apply func(*withdrawaldm.Withdrawal)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return errors.ErrWithdrawalNotFound
	}
	if w.Status != from {
		return withdrawal.ErrStaleTransition
	}
	w.Status = to
	w.UpdatedAt = now
	if apply != nil {
		apply(&w)
	}
	r.s.withdrawals[id] = w
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
