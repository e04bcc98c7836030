package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gatewaydm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const SandboxBaseURL = "https://api-m.sandbox.paypal.com"

var (
	// ErrTransient marks network failures, 5xx and 429 responses. The same
	// request may be sent again.
	ErrTransient = stderrors.New("paypal temporarily unavailable")
	// ErrDuplicateBatch means a payout with the same sender_batch_id was
	// already accepted.
	ErrDuplicateBatch = stderrors.New("payout batch already submitted")
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	Timeout      time.Duration
}

type Client struct {
	baseURL    string
	currency   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Recorder
	backoff    func() retry.Backoff
}

type Option func(*Client)

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

func WithBackoff(b func() retry.Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(5*time.Second, b)
	return retry.WithMaxRetries(4, b)
}

func NewClient(config Config, logger *slog.Logger, opts ...Option) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	currency := config.Currency
	if currency == "" {
		currency = "USD"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	credentials := clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})

	c := &Client{
		baseURL:    baseURL,
		currency:   currency,
		timeout:    timeout,
		httpClient: credentials.Client(tokenCtx),
		logger:     logger,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePayout sends one EMAIL payout. SenderBatchID doubles as the
// idempotency key, so resending after a timeout cannot pay twice.
func (c *Client) CreatePayout(ctx context.Context, req *gatewaydm.PayoutRequest) (*gatewaydm.PayoutResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	body := payoutBody{
		SenderBatchHeader: payoutSenderHeader{
			SenderBatchID: req.SenderBatchID,
			EmailSubject:  emailSubject,
		},
		Items: []payoutItem{{
			RecipientType: recipientType,
			Amount:        money{Value: req.Amount.StringFixed(2), Currency: currency},
			Note:          payoutNote,
			Receiver:      req.Email,
			SenderItemID:  req.SenderBatchID,
		}},
	}

	c.logger.Info("paypal: creating payout",
		"sender_batch_id", req.SenderBatchID,
		"amount", req.Amount.StringFixed(2),
		"currency", currency)

	var resp payoutResponse
	start := time.Now()
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/v1/payments/payouts", body, &resp)
	})
	c.metrics.ObservePayout(start)
	if err != nil {
		c.logger.Error("paypal: payout failed", "error", err, "sender_batch_id", req.SenderBatchID)
		return nil, err
	}

	c.logger.Info("paypal: payout accepted",
		"sender_batch_id", req.SenderBatchID,
		"payout_batch_id", resp.BatchHeader.PayoutBatchID,
		"batch_status", resp.BatchHeader.BatchStatus)

	return &gatewaydm.PayoutResult{
		BatchID:     resp.BatchHeader.PayoutBatchID,
		BatchStatus: resp.BatchHeader.BatchStatus,
	}, nil
}

func (c *Client) GetPayoutBatch(ctx context.Context, batchID string) (*gatewaydm.PayoutResult, error) {
	var resp payoutResponse
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/v1/payments/payouts/"+url.PathEscape(batchID), nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &gatewaydm.PayoutResult{
		BatchID:     resp.BatchHeader.PayoutBatchID,
		BatchStatus: resp.BatchHeader.BatchStatus,
	}, nil
}

// GetOrder looks up a checkout order, used to confirm a capture reported by
// the booking page.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*gatewaydm.Order, error) {
	var resp orderResponse
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	order := &gatewaydm.Order{
		ID:     resp.ID,
		Status: resp.Status,
		Amount: decimal.Zero,
		Payer:  strings.TrimSpace(resp.Payer.Name.GivenName + " " + resp.Payer.Name.Surname),
	}
	if len(resp.PurchaseUnits) > 0 {
		amount, err := decimal.NewFromString(resp.PurchaseUnits[0].Amount.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse order amount %q: %w", resp.PurchaseUnits[0].Amount.Value, err)
		}
		order.Amount = amount
	}
	return order, nil
}

func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if stderrors.Is(err, ErrTransient) {
			c.logger.Warn("paypal: transient failure, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && ctx.Err() != nil && !stderrors.Is(err, ErrTransient) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTransient, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return classifyResponse(resp.StatusCode, raw)
}

func classifyResponse(status int, raw []byte) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrTransient, status)
	}

	apiErr := &APIError{StatusCode: status}
	_ = json.Unmarshal(raw, apiErr)
	if status == http.StatusConflict || apiErr.isDuplicateBatch() {
		return fmt.Errorf("%w: %s", ErrDuplicateBatch, apiErr.Error())
	}
	return apiErr
}

func classifyTransportError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
		return &APIError{
			StatusCode: retrieveErr.Response.StatusCode,
			Name:       "AUTHENTICATION_FAILURE",
			Message:    "could not obtain an access token",
		}
	}
	// A cancelled request may still have reached PayPal.
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
