package postgres

import (
	"context"
	"testing"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestCatalogRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Catalog Postgres Suite")
}

var _ = Describe("CatalogRepository", func() {
	var (
		db   *gorm.DB
		repo *CatalogRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(&catalogdm.Service{})).To(Succeed())

		services := []*catalogdm.Service{
			{ID: "svc-b", UserID: "merchant-1", ServiceName: "Beard trim", Price: decimal.RequireFromString("15.00"), Order: 2,
				TimeSlots: []catalogdm.TimeSlot{{Start: "09:00", End: "09:30"}}},
			{ID: "svc-a", UserID: "merchant-1", ServiceName: "Haircut", Price: decimal.RequireFromString("25.50"), Order: 1,
				Availability: map[string]bool{"monday": true}},
			{ID: "svc-c", UserID: "merchant-2", ServiceName: "Massage", Price: decimal.RequireFromString("60.00")},
		}
		for _, svc := range services {
			Expect(db.Create(svc).Error).To(Succeed())
		}

		repo = NewCatalogRepository(db)
		ctx = context.Background()
	})

	Describe("GetByID", func() {
		It("should return the service with its slots and price", func() {
			svc, err := repo.GetByID(ctx, "svc-b")

			Expect(err).NotTo(HaveOccurred())
			Expect(svc.ServiceName).To(Equal("Beard trim"))
			Expect(svc.Price.StringFixed(2)).To(Equal("15.00"))
			Expect(svc.TimeSlots).To(ConsistOf(catalogdm.TimeSlot{Start: "09:00", End: "09:30"}))
		})

		It("should return ErrServiceNotFound for unknown ids", func() {
			svc, err := repo.GetByID(ctx, "missing")

			Expect(err).To(MatchError(errors.ErrServiceNotFound))
			Expect(svc).To(BeNil())
		})
	})

	Describe("ListByMerchant", func() {
		It("should return only the merchant's services in display order", func() {
			services, err := repo.ListByMerchant(ctx, "merchant-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(services).To(HaveLen(2))
			Expect(services[0].ID).To(Equal("svc-a"))
			Expect(services[1].ID).To(Equal("svc-b"))
		})
	})
})
