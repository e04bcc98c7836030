package paymentgateway

import (
	"fmt"
	"strings"
)

const (
	emailSubject  = "You have a payment"
	payoutNote    = "Thank you for your business."
	recipientType = "EMAIL"
)

type money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type payoutSenderHeader struct {
	SenderBatchID string `json:"sender_batch_id"`
	EmailSubject  string `json:"email_subject"`
	EmailMessage  string `json:"email_message,omitempty"`
}

type payoutItem struct {
	RecipientType string `json:"recipient_type"`
	Amount        money  `json:"amount"`
	Note          string `json:"note"`
	Receiver      string `json:"receiver"`
	SenderItemID  string `json:"sender_item_id"`
}

type payoutBody struct {
	SenderBatchHeader payoutSenderHeader `json:"sender_batch_header"`
	Items             []payoutItem       `json:"items"`
}

type batchHeader struct {
	PayoutBatchID string `json:"payout_batch_id"`
	BatchStatus   string `json:"batch_status"`
}

type payoutResponse struct {
	BatchHeader batchHeader `json:"batch_header"`
}

type orderAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount orderAmount `json:"amount"`
	} `json:"purchase_units"`
	Payer struct {
		Name struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

type errorDetail struct {
	Field       string `json:"field"`
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

// APIError is a non-retryable error response from the PayPal REST API.
type APIError struct {
	StatusCode int           `json:"-"`
	Name       string        `json:"name"`
	Message    string        `json:"message"`
	DebugID    string        `json:"debug_id"`
	Details    []errorDetail `json:"details"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("paypal api error %d", e.StatusCode)
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	for _, d := range e.Details {
		if d.Issue != "" {
			msg += " (" + d.Issue + ")"
		}
	}
	return msg
}

func (e *APIError) isDuplicateBatch() bool {
	if e.Name == "DUPLICATE_REQUEST_ID" {
		return true
	}
	for _, d := range e.Details {
		text := strings.ToLower(d.Field + " " + d.Issue + " " + d.Description)
		if strings.Contains(text, "sender_batch_id") && strings.Contains(text, "already") {
			return true
		}
	}
	return false
}
