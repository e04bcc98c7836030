package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/frahmantamala/merchant-settlement/internal"
	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	"github.com/frahmantamala/merchant-settlement/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a superadmin, an approved demo merchant with services, and a merchant awaiting approval.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if storage == storageMemory {
			log.Fatal("seed writes to postgres; the in-memory server seeds itself on start")
		}

		app, err := newApplication(cfg, logger.LoggerWrapper())
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer app.Close()

		ctx := context.Background()
		if clearData {
			if err := clearTables(ctx, app.gormDB); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		merchants, services := demoData(time.Now().UTC())
		for _, m := range merchants {
			res := app.gormDB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
			if res.Error != nil {
				log.Fatalf("failed to insert merchant %s: %v", m.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				fmt.Println("merchant already exists:", m.Email)
			} else {
				fmt.Println("Seeded merchant:", m.Email, "status:", m.Status)
			}
			if err := app.ledger.EnsureAccount(ctx, m.ID); err != nil {
				log.Fatalf("failed to create balance for %s: %v", m.ID, err)
			}
		}

		for _, s := range services {
			if err := app.gormDB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s).Error; err != nil {
				log.Fatalf("failed to insert service %s: %v", s.ID, err)
			}
			fmt.Println("Seeded service:", s.ServiceName, "price:", s.Price.StringFixed(2))
		}

		fmt.Println("Seeding complete")
	},
}

// seedMemory loads the demo data into the in-memory store used by
// `server --storage=memory`.
func seedMemory(app *application) {
	ctx := context.Background()
	merchants, services := demoData(time.Now().UTC())
	for _, m := range merchants {
		app.memory.PutMerchant(m)
		if err := app.ledger.EnsureAccount(ctx, m.ID); err != nil {
			app.logger.Error("failed to create demo balance", "merchant_id", m.ID, "error", err)
		}
	}
	for _, s := range services {
		app.memory.PutService(s)
	}
	app.logger.Info("in-memory store seeded", "merchants", len(merchants), "services", len(services))
}

func clearTables(ctx context.Context, db *gorm.DB) error {
	// children first
	tables := []string{"ledger_entries", "withdrawals", "payments", "merchant_balances", "services", "merchants"}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func demoData(now time.Time) ([]*merchantdm.Merchant, []*catalogdm.Service) {
	merchants := []*merchantdm.Merchant{
		{
			ID:        "admin-0001",
			Email:     "admin@booking.local",
			FullName:  "Platform Admin",
			Role:      internal.RoleSuperadmin,
			Status:    merchantdm.StatusApproved,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "merchant-0001",
			Email:       "studio@booking.local",
			FullName:    "Fadhil Rahman",
			BrandName:   "Fadhil Barber Studio",
			PaypalEmail: "sb-studio@personal.example.com",
			Role:        internal.RoleMerchant,
			Status:      merchantdm.StatusApproved,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:        "merchant-0002",
			Email:     "newcomer@booking.local",
			FullName:  "Padil Newcomer",
			BrandName: "Padil Yoga",
			Role:      internal.RoleMerchant,
			Status:    merchantdm.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	slots := []catalogdm.TimeSlot{
		{Start: "09:00", End: "10:00"},
		{Start: "10:00", End: "11:00"},
		{Start: "14:00", End: "15:00"},
	}
	weekdays := map[string]bool{
		"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
		"saturday": false, "sunday": false,
	}

	services := []*catalogdm.Service{
		{
			ID:           "service-0001",
			UserID:       "merchant-0001",
			ServiceName:  "Classic Haircut",
			Description:  "Wash, cut and style.",
			Price:        decimal.RequireFromString("25.00"),
			TimeSlots:    slots,
			Availability: weekdays,
			Order:        1,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           "service-0002",
			UserID:       "merchant-0001",
			ServiceName:  "Beard Trim",
			Description:  "Shape and hot towel.",
			Price:        decimal.RequireFromString("12.50"),
			TimeSlots:    slots,
			Availability: weekdays,
			Order:        2,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	return merchants, services
}
