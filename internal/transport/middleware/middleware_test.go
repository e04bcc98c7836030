package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/frahmantamala/merchant-settlement/api"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var silentLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

var _ = Describe("OpenAPIValidator", func() {
	var (
		handler http.Handler
		reached bool
	)

	BeforeEach(func() {
		validate, err := OpenAPIValidator(api.Spec, silentLogger)
		Expect(err).NotTo(HaveOccurred())
		reached = false
		handler = validate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			w.WriteHeader(http.StatusNoContent)
		}))
	})

	send := func(method, target, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		handler.ServeHTTP(w, req)
		return w
	}

	It("should pass a well-formed capture", func() {
		w := send(http.MethodPost, "/api/v1/payments/capture", `{
			"transactionId": "TX-1",
			"merchantId": "m-1",
			"serviceId": "svc-1",
			"customerName": "Jane Doe",
			"customerEmail": "jane@example.com",
			"selectedDate": "2026-03-10",
			"selectedTimeSlot": "14:00 - 15:00",
			"servicePrice": 25.5
		}`)

		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(reached).To(BeTrue())
	})

	It("should reject a capture without a transaction id", func() {
		w := send(http.MethodPost, "/api/v1/payments/capture", `{
			"merchantId": "m-1",
			"serviceId": "svc-1",
			"customerName": "Jane Doe",
			"customerEmail": "jane@example.com",
			"selectedDate": "2026-03-10",
			"selectedTimeSlot": "14:00 - 15:00",
			"servicePrice": 25.5
		}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("VALIDATION_FAILED"))
		Expect(reached).To(BeFalse())
	})

	It("should accept amounts sent as strings", func() {
		w := send(http.MethodPost, "/api/withdraw", `{"amount": "40.00", "email": "merchant@example.com"}`)

		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("should reject non-numeric amounts", func() {
		w := send(http.MethodPost, "/api/v1/me/withdrawals", `{"amount": "forty"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(reached).To(BeFalse())
	})

	It("should reject negative paging parameters", func() {
		w := send(http.MethodGet, "/api/v1/me/payments?limit=-1", "")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should let undocumented routes through", func() {
		w := send(http.MethodGet, "/metrics", "")

		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(reached).To(BeTrue())
	})
})

var _ = Describe("Sensitive data filtering", func() {
	It("should mask secrets in nested JSON", func() {
		out := filterSensitiveBody([]byte(`{"amount": 40, "auth": {"access_token": "abc", "client_secret": "s3cr3t"}}`))

		Expect(out).To(ContainSubstring(`"amount":40`))
		Expect(out).NotTo(ContainSubstring("abc"))
		Expect(out).NotTo(ContainSubstring("s3cr3t"))
	})

	It("should mask the authorization header", func() {
		headers := http.Header{}
		headers.Set("Authorization", "Bearer abc")
		headers.Set("Content-Type", "application/json")

		filtered := filterSensitiveHeaders(headers)

		Expect(filtered["Authorization"]).To(Equal("[FILTERED]"))
		Expect(filtered["Content-Type"]).To(Equal("application/json"))
	})

	It("should keep the request body readable downstream", func() {
		var seen string
		h := LoggingMiddleware(silentLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seen = string(b)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/withdraw", strings.NewReader(`{"amount":1}`))
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(seen).To(Equal(`{"amount":1}`))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("should answer a panic with a 500 error body", func() {
		h := RecoveryMiddleware(silentLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("INTERNAL_ERROR"))
		Expect(w.Body.String()).NotTo(ContainSubstring("boom"))
	})
})

var _ = Describe("RequestID", func() {
	It("should propagate the caller's trace id", func() {
		var traceID string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = TraceID(r.Context())
		}))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "trace-123")
		h.ServeHTTP(w, req)

		Expect(traceID).To(Equal("trace-123"))
		Expect(w.Header().Get(TraceHeader)).To(Equal("trace-123"))
	})

	It("should mint a trace id when none is sent", func() {
		w := httptest.NewRecorder()
		RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(w.Header().Get(TraceHeader)).NotTo(BeEmpty())
	})
})
