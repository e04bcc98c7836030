package payment_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/catalog"
	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
	paymentdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/payment"
	gatewaydm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/payment"
	"github.com/frahmantamala/merchant-settlement/internal/store/memory"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

func TestPayment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Suite")
}

func fastBackoff() retry.Backoff {
	return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
}

type brokenLedger struct {
	calls int
}

func (l *brokenLedger) IncreasePending(context.Context, string, decimal.Decimal, string) error {
	l.calls++
	return fmt.Errorf("database is unavailable")
}

type stubVerifier struct {
	order *gatewaydm.Order
	err   error
}

func (v *stubVerifier) GetOrder(_ context.Context, orderID string) (*gatewaydm.Order, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.order, nil
}

var _ = Describe("Payment", func() {
	var (
		store     *memory.Store
		ledgerSvc *ledger.Service
		catalogs  *catalog.Service
		service   *payment.Service
		slogger   *slog.Logger
		ctx       context.Context
		now       time.Time
	)

	newRequest := func(txID string) *payment.CaptureRequest {
		return &payment.CaptureRequest{
			TransactionID:    txID,
			CustomerName:     "Jane Doe",
			CustomerEmail:    "jane@example.com",
			SelectedDate:     "2026-03-10",
			SelectedTimeSlot: "14:00 - 15:00",
			ServiceID:        "svc-1",
			ServicePrice:     decimal.RequireFromString("45.00"),
			MerchantID:       "m-1",
		}
	}

	pending := func() string {
		view, err := ledgerSvc.GetBalance(ctx, "m-1")
		Expect(err).NotTo(HaveOccurred())
		return view.PendingBalance.StringFixed(2)
	}

	bookings := func() int64 {
		svc, err := store.Catalog().GetByID(ctx, "svc-1")
		Expect(err).NotTo(HaveOccurred())
		return svc.BookingsCount
	}

	BeforeEach(func() {
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = memory.New()
		store.PutService(&catalogdm.Service{
			ID:          "svc-1",
			UserID:      "m-1",
			ServiceName: "Massage",
			Price:       decimal.RequireFromString("45"),
		})
		ledgerSvc = ledger.NewService(store.Ledger(), slogger)
		catalogs = catalog.NewService(store.Catalog(), slogger)
		now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		ctx = context.Background()
		service = payment.NewService(store.Payments(), ledgerSvc, catalogs, slogger,
			payment.WithClock(func() time.Time { return now }),
			payment.WithBackoff(fastBackoff))
	})

	Describe("Capture", func() {
		It("should record the payment, the pending credit and the booking", func() {
			// When
			p, err := service.Capture(ctx, newRequest("ORDER-1"))

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(paymentdm.StatusPending))
			Expect(p.ServiceName).To(Equal("Massage"))
			Expect(p.PaymentTime).To(Equal(now))
			Expect(p.ReleaseTime).To(Equal(time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)))
			Expect(pending()).To(Equal("45.00"))
			Expect(bookings()).To(Equal(int64(1)))
		})

		It("should compute the release time in the configured timezone", func() {
			wib := time.FixedZone("WIB", 7*3600)
			service = payment.NewService(store.Payments(), ledgerSvc, catalogs, slogger,
				payment.WithLocation(wib),
				payment.WithHoldPeriod(48*time.Hour))

			p, err := service.Capture(ctx, newRequest("ORDER-1"))

			Expect(err).NotTo(HaveOccurred())
			Expect(p.ReleaseTime.UTC()).To(Equal(time.Date(2026, 3, 12, 7, 0, 0, 0, time.UTC)))
		})

		It("should treat a resubmitted capture as the same payment", func() {
			first, err := service.Capture(ctx, newRequest("ORDER-1"))
			Expect(err).NotTo(HaveOccurred())

			second, err := service.Capture(ctx, newRequest("ORDER-1"))

			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
			Expect(pending()).To(Equal("45.00"))
			Expect(bookings()).To(Equal(int64(1)))
		})

		It("should reject a price that differs from the service price", func() {
			req := newRequest("ORDER-1")
			req.ServicePrice = decimal.RequireFromString("40")

			_, err := service.Capture(ctx, req)

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypeValidation))
			Expect(appErr.Details.(errors.ValidationErrors).Errors[0].Code).To(Equal(string(errors.ErrCodePriceMismatch)))
			Expect(pending()).To(Equal("0.00"))
		})

		It("should reject a service owned by another merchant", func() {
			req := newRequest("ORDER-1")
			req.MerchantID = "m-2"

			_, err := service.Capture(ctx, req)

			Expect(errors.HasCode(err, errors.ErrCodeServiceNotFound)).To(BeTrue())
		})

		It("should reject unknown services", func() {
			req := newRequest("ORDER-1")
			req.ServiceID = "ghost"

			_, err := service.Capture(ctx, req)

			Expect(errors.HasCode(err, errors.ErrCodeServiceNotFound)).To(BeTrue())
		})

		DescribeTable("should validate the request",
			func(mutate func(r *payment.CaptureRequest)) {
				req := newRequest("ORDER-1")
				mutate(req)

				_, err := service.Capture(ctx, req)

				Expect(errors.HasCode(err, errors.ErrCodeValidationFailed)).To(BeTrue())
			},
			Entry("missing transaction id", func(r *payment.CaptureRequest) { r.TransactionID = "" }),
			Entry("bad email", func(r *payment.CaptureRequest) { r.CustomerEmail = "jane" }),
			Entry("bad date", func(r *payment.CaptureRequest) { r.SelectedDate = "10/03/2026" }),
			Entry("bad time slot", func(r *payment.CaptureRequest) { r.SelectedTimeSlot = "2pm" }),
			Entry("zero price", func(r *payment.CaptureRequest) { r.ServicePrice = decimal.Zero }),
		)

		It("should report a booking record failure after retries", func() {
			broken := &brokenLedger{}
			service = payment.NewService(store.Payments(), broken, catalogs, slogger, payment.WithBackoff(fastBackoff))

			_, err := service.Capture(ctx, newRequest("ORDER-1"))

			Expect(errors.HasCode(err, errors.ErrCodeBookingRecordFailed)).To(BeTrue())
			Expect(broken.calls).To(Equal(3))
			Expect(bookings()).To(Equal(int64(0)))
		})

		Context("with processor verification", func() {
			It("should accept a completed order of the same amount", func() {
				verifier := &stubVerifier{order: &gatewaydm.Order{
					ID:     "ORDER-1",
					Status: gatewaydm.OrderStatusCompleted,
					Amount: decimal.RequireFromString("45"),
					Payer:  "Jane Payer",
				}}
				service = payment.NewService(store.Payments(), ledgerSvc, catalogs, slogger, payment.WithOrderVerifier(verifier))

				p, err := service.Capture(ctx, newRequest("ORDER-1"))

				Expect(err).NotTo(HaveOccurred())
				Expect(p.PayerName).To(Equal("Jane Payer"))
			})

			It("should refuse an order the processor did not complete", func() {
				verifier := &stubVerifier{order: &gatewaydm.Order{
					ID:     "ORDER-1",
					Status: "APPROVED",
					Amount: decimal.RequireFromString("45"),
				}}
				service = payment.NewService(store.Payments(), ledgerSvc, catalogs, slogger, payment.WithOrderVerifier(verifier))

				_, err := service.Capture(ctx, newRequest("ORDER-1"))

				Expect(errors.HasCode(err, errors.ErrCodeCaptureVerificationFailed)).To(BeTrue())
				Expect(pending()).To(Equal("0.00"))
			})

			It("should refuse when the processor cannot be reached", func() {
				verifier := &stubVerifier{err: fmt.Errorf("dial tcp: timeout")}
				service = payment.NewService(store.Payments(), ledgerSvc, catalogs, slogger, payment.WithOrderVerifier(verifier))

				_, err := service.Capture(ctx, newRequest("ORDER-1"))

				Expect(errors.HasCode(err, errors.ErrCodeCaptureVerificationFailed)).To(BeTrue())
			})
		})
	})

	Describe("ListMerchantPayments", func() {
		It("should return only the merchant's payments", func() {
			_, err := service.Capture(ctx, newRequest("ORDER-1"))
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Capture(ctx, newRequest("ORDER-2"))
			Expect(err).NotTo(HaveOccurred())

			mine, err := service.ListMerchantPayments(ctx, "m-1", 0, 0)
			Expect(err).NotTo(HaveOccurred())
			others, err := service.ListMerchantPayments(ctx, "m-2", 0, 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(mine).To(HaveLen(2))
			Expect(others).To(BeEmpty())
		})
	})

	Describe("Handler", func() {
		var handler *payment.Handler

		BeforeEach(func() {
			handler = payment.NewHandler(&transport.BaseHandler{Logger: slogger}, service)
		})

		It("should capture a payment", func() {
			body, err := json.Marshal(newRequest("ORDER-1"))
			Expect(err).NotTo(HaveOccurred())
			w := httptest.NewRecorder()

			handler.Capture(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments/capture", strings.NewReader(string(body))))

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(w.Body.String()).To(ContainSubstring(`"transactionId":"ORDER-1"`))
		})

		It("should reject malformed bodies", func() {
			w := httptest.NewRecorder()

			handler.Capture(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments/capture", strings.NewReader("{")))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should list the caller's payments", func() {
			_, err := service.Capture(ctx, newRequest("ORDER-1"))
			Expect(err).NotTo(HaveOccurred())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me/payments?limit=5", nil)
			req = req.WithContext(errors.ContextWithPrincipal(req.Context(), &errors.Principal{UserID: "m-1", Role: "merchant"}))
			w := httptest.NewRecorder()

			handler.ListMyPayments(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Payments []json.RawMessage `json:"payments"`
				Limit    int               `json:"limit"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Payments).To(HaveLen(1))
			Expect(resp.Limit).To(Equal(5))
		})

		It("should require authentication to list payments", func() {
			w := httptest.NewRecorder()

			handler.ListMyPayments(w, httptest.NewRequest(http.MethodGet, "/api/v1/me/payments", nil))

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
