package withdrawal_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/lock"
	"github.com/frahmantamala/merchant-settlement/internal/store/memory"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/frahmantamala/merchant-settlement/internal/withdrawal"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Handler", func() {
	var (
		store     *memory.Store
		ledgerSvc *ledger.Service
		router    chi.Router
		principal *errors.Principal
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = memory.New()
		store.PutMerchant(&merchantdm.Merchant{ID: "m-1", Email: "owner@example.com", Role: "merchant", Status: merchantdm.StatusApproved})
		store.PutMerchant(&merchantdm.Merchant{ID: "m-2", Email: "other@example.com", Role: "merchant", Status: merchantdm.StatusApproved})
		ledgerSvc = ledger.NewService(store.Ledger(), slogger)
		ctx := context.Background()
		Expect(ledgerSvc.IncreasePending(ctx, "m-1", decimal.RequireFromString("100"), "capture:seed")).To(Succeed())
		Expect(ledgerSvc.ReleaseFunds(ctx, "m-1", decimal.RequireFromString("100"), "release:seed")).To(Succeed())

		service := withdrawal.NewService(store.Withdrawals(), ledgerSvc, &stubPayouts{}, store.Merchants(), lock.NewLocalLocker(), slogger,
			withdrawal.WithBackoff(fastBackoff))
		handler := withdrawal.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		principal = &errors.Principal{UserID: "m-1", Email: "owner@example.com", Role: "merchant"}
		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if principal != nil {
					r = r.WithContext(errors.ContextWithPrincipal(r.Context(), principal))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Post("/api/withdraw", handler.Withdraw)
		router.Post("/api/v1/me/withdrawals", handler.RequestWithdrawal)
		router.Get("/api/v1/me/withdrawals", handler.ListMyWithdrawals)
		router.Get("/api/v1/me/withdrawals/{withdrawalID}", handler.GetMyWithdrawal)
	})

	post := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	It("should answer the compatibility endpoint with a batch id", func() {
		w := post("/api/withdraw", `{"amount": 40, "email": "merchant@example.com"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp withdrawal.PayoutResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.BatchID).To(HavePrefix("BATCH-withdrawal_"))
	})

	It("should create a withdrawal and list it", func() {
		created := post("/api/v1/me/withdrawals", `{"amount": "25.50", "email": "merchant@example.com"}`)
		Expect(created.Code).To(Equal(http.StatusCreated))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me/withdrawals", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp withdrawal.WithdrawalsResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Withdrawals).To(HaveLen(1))
		Expect(resp.Withdrawals[0].Amount.StringFixed(2)).To(Equal("25.50"))
	})

	It("should hide other merchants' withdrawals", func() {
		created := post("/api/v1/me/withdrawals", `{"amount": 10, "email": "merchant@example.com"}`)
		Expect(created.Code).To(Equal(http.StatusCreated))
		var body struct {
			ID string `json:"id"`
		}
		Expect(json.Unmarshal(created.Body.Bytes(), &body)).To(Succeed())

		principal = &errors.Principal{UserID: "m-2", Role: "merchant"}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me/withdrawals/"+body.ID, nil))

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should report insufficient balance as a conflict", func() {
		w := post("/api/withdraw", `{"amount": 100.01, "email": "merchant@example.com"}`)

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("INSUFFICIENT_BALANCE"))
	})

	It("should reject malformed bodies", func() {
		w := post("/api/withdraw", `{"amount": `)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should require authentication", func() {
		principal = nil

		w := post("/api/withdraw", `{"amount": 10}`)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
