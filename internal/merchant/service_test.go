package merchant_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/store/memory"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMerchantService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Merchant Service Suite")
}

var _ = Describe("Merchant onboarding", func() {
	var (
		store     *memory.Store
		ledgerSvc *ledger.Service
		bus       *events.EventBus
		service   *merchant.Service
		slogger   *slog.Logger
		ctx       context.Context
	)

	BeforeEach(func() {
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = memory.New()
		store.PutMerchant(&merchantdm.Merchant{ID: "m-1", Email: "one@example.com", Role: errors.RoleMerchant, Status: merchantdm.StatusPending})
		store.PutMerchant(&merchantdm.Merchant{ID: "m-2", Email: "two@example.com", Role: errors.RoleMerchant, Status: merchantdm.StatusIncomplete})
		store.PutMerchant(&merchantdm.Merchant{ID: "root", Email: "root@example.com", Role: errors.RoleSuperadmin})

		ledgerSvc = ledger.NewService(store.Ledger(), slogger)
		bus = events.NewEventBus(slogger)
		service = merchant.NewService(store.Merchants(), ledgerSvc, bus, slogger)
		ctx = context.Background()
	})

	Describe("Approve", func() {
		It("should approve the merchant and open a zero balance", func() {
			// Given
			received := make(chan events.Event, 1)
			bus.Subscribe(events.EventTypeMerchantApproved, func(_ context.Context, e events.Event) error {
				received <- e
				return nil
			})

			// When
			m, err := service.Approve(ctx, "m-1", "root")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Status).To(Equal(merchantdm.StatusApproved))

			stored, err := store.Ledger().Get(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Balance.IsZero()).To(BeTrue())
			Expect(stored.PendingBalance.IsZero()).To(BeTrue())
			Eventually(received).Should(Receive())
		})

		It("should be repeatable", func() {
			_, err := service.Approve(ctx, "m-1", "root")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, "m-1", "root")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return not found for unknown merchants", func() {
			_, err := service.Approve(ctx, "ghost", "root")

			Expect(errors.HasCode(err, errors.ErrCodeMerchantNotFound)).To(BeTrue())
		})

		It("should refuse to change a superadmin", func() {
			_, err := service.Approve(ctx, "root", "root")

			Expect(errors.HasCode(err, errors.ErrCodeInvalidMerchantStatus)).To(BeTrue())
		})
	})

	Describe("Reject", func() {
		It("should reject without opening a balance", func() {
			m, err := service.Reject(ctx, "m-2", "root")

			Expect(err).NotTo(HaveOccurred())
			Expect(m.Status).To(Equal(merchantdm.StatusRejected))
			_, err = store.Ledger().Get(ctx, "m-2")
			Expect(err).To(MatchError(ledger.ErrAccountNotFound))
		})
	})

	Describe("ListMerchants", func() {
		It("should filter by status and hide superadmins", func() {
			pending, err := service.ListMerchants(ctx, "pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))

			all, err := service.ListMerchants(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})

		It("should reject unknown statuses", func() {
			_, err := service.ListMerchants(ctx, "banned")

			Expect(errors.HasCode(err, errors.ErrCodeInvalidMerchantStatus)).To(BeTrue())
		})
	})

	Describe("Handler", func() {
		var router chi.Router

		BeforeEach(func() {
			handler := merchant.NewHandler(&transport.BaseHandler{Logger: slogger}, service)
			router = chi.NewRouter()
			router.Patch("/api/v1/admin/merchants/{merchantID}/approve", handler.Approve)
		})

		It("should approve on behalf of the authenticated superadmin", func() {
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/merchants/m-1/approve", nil)
			req = req.WithContext(errors.ContextWithPrincipal(req.Context(), &errors.Principal{UserID: "root", Role: errors.RoleSuperadmin}))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var body merchantdm.Merchant
			Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
			Expect(body.Status).To(Equal(merchantdm.StatusApproved))
		})

		It("should require a principal", func() {
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/merchants/m-1/approve", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
