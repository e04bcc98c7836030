package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	ledgerdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestLedgerRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ledger Postgres Suite")
}

var _ = Describe("LedgerRepository", func() {
	var (
		db   *gorm.DB
		repo *LedgerRepository
		ctx  context.Context
		now  time.Time
	)

	entry := func(id, ref, amount string) *ledgerdm.Entry {
		return &ledgerdm.Entry{
			ID:           id,
			MerchantID:   "m-1",
			Reference:    ref,
			Kind:         ledgerdm.KindCapture,
			Amount:       decimal.RequireFromString(amount),
			BalanceAfter: decimal.Zero,
			PendingAfter: decimal.RequireFromString(amount),
			CreatedAt:    now,
		}
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(&ledgerdm.MerchantBalance{}, &ledgerdm.Entry{})).To(Succeed())

		repo = NewLedgerRepository(db)
		ctx = context.Background()
		now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	})

	Describe("CreateIfMissing", func() {
		It("should create a zero balance once", func() {
			Expect(repo.CreateIfMissing(ctx, "m-1", now)).To(Succeed())
			Expect(repo.CreateIfMissing(ctx, "m-1", now)).To(Succeed())

			b, err := repo.Get(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Balance.IsZero()).To(BeTrue())
			Expect(b.Version).To(Equal(int64(0)))
		})

		It("should report missing balances", func() {
			_, err := repo.Get(ctx, "m-1")

			Expect(err).To(MatchError(ledger.ErrAccountNotFound))
		})
	})

	Describe("Commit", func() {
		BeforeEach(func() {
			Expect(repo.CreateIfMissing(ctx, "m-1", now)).To(Succeed())
		})

		It("should swap the balance and bump the version", func() {
			next := &ledgerdm.MerchantBalance{MerchantID: "m-1", Balance: decimal.Zero, PendingBalance: decimal.RequireFromString("10.50"), LastUpdated: now}

			Expect(repo.Commit(ctx, next, 0, entry("e-1", "capture:tx-1", "10.50"))).To(Succeed())

			b, err := repo.Get(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(b.PendingBalance.StringFixed(2)).To(Equal("10.50"))
			Expect(b.Version).To(Equal(int64(1)))
			Expect(next.Version).To(Equal(int64(1)))

			applied, err := repo.HasReference(ctx, "capture:tx-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeTrue())
		})

		It("should reject a stale version and roll back the entry", func() {
			first := &ledgerdm.MerchantBalance{MerchantID: "m-1", PendingBalance: decimal.RequireFromString("1"), LastUpdated: now}
			Expect(repo.Commit(ctx, first, 0, entry("e-1", "capture:tx-1", "1"))).To(Succeed())

			stale := &ledgerdm.MerchantBalance{MerchantID: "m-1", PendingBalance: decimal.RequireFromString("2"), LastUpdated: now}
			err := repo.Commit(ctx, stale, 0, entry("e-2", "capture:tx-2", "2"))

			Expect(err).To(MatchError(errors.ErrConcurrencyConflict))
			applied, err := repo.HasReference(ctx, "capture:tx-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeFalse())
		})

		It("should report a reference that was already applied", func() {
			first := &ledgerdm.MerchantBalance{MerchantID: "m-1", PendingBalance: decimal.RequireFromString("1"), LastUpdated: now}
			Expect(repo.Commit(ctx, first, 0, entry("e-1", "capture:tx-1", "1"))).To(Succeed())

			again := &ledgerdm.MerchantBalance{MerchantID: "m-1", PendingBalance: decimal.RequireFromString("2"), LastUpdated: now}
			err := repo.Commit(ctx, again, 1, entry("e-2", "capture:tx-1", "1"))

			Expect(err).To(MatchError(ledger.ErrDuplicateReference))
			b, _ := repo.Get(ctx, "m-1")
			Expect(b.PendingBalance.StringFixed(2)).To(Equal("1.00"))
		})
	})

	Describe("with the ledger service", func() {
		It("should run a capture, release and withdrawal through the journal", func() {
			slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			service := ledger.NewService(repo, slogger)

			Expect(service.IncreasePending(ctx, "m-1", decimal.RequireFromString("100"), ledger.CaptureReference("tx-1"))).To(Succeed())
			Expect(service.ReleaseFunds(ctx, "m-1", decimal.RequireFromString("100"), ledger.ReleaseReference("p-1"))).To(Succeed())
			Expect(service.ReleaseFunds(ctx, "m-1", decimal.RequireFromString("100"), ledger.ReleaseReference("p-1"))).To(Succeed())
			Expect(service.DebitForWithdrawal(ctx, "m-1", decimal.RequireFromString("40"), ledger.WithdrawalReference("w-1"))).To(Succeed())

			view, err := service.GetBalance(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Balance.StringFixed(2)).To(Equal("60.00"))
			Expect(view.PendingBalance.StringFixed(2)).To(Equal("0.00"))

			entries, err := service.ListEntries(ctx, "m-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
		})
	})
})
