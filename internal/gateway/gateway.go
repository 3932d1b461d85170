// Package gateway talks to the online payment provider: it reserves a
// provider order for a checkout, looks payments up server-side, and checks
// the HMAC signatures the provider attaches to client callbacks and webhooks.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnavailable = errors.New("payment provider unavailable")
	ErrNotFound    = errors.New("payment provider object not found")
)

// Payment statuses reported by the provider.
const (
	PaymentCreated    = "created"
	PaymentAuthorized = "authorized"
	PaymentCaptured   = "captured"
	PaymentRefunded   = "refunded"
	PaymentFailed     = "failed"
)

type OrderParams struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Payment struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Method           string            `json:"method"`
	ErrorCode        string            `json:"error_code,omitempty"`
	ErrorDescription string            `json:"error_description,omitempty"`
	CreatedAt        int64             `json:"created_at"`
	Notes            map[string]string `json:"notes,omitempty"`
}

// Succeeded reports whether the provider holds the funds for this payment.
func (p Payment) Succeeded() bool {
	return p.Status == PaymentCaptured || p.Status == PaymentAuthorized
}

func (p Payment) Failed() bool {
	return p.Status == PaymentFailed
}

func (p Payment) FailureReason() string {
	switch {
	case p.ErrorDescription != "":
		return p.ErrorDescription
	case p.ErrorCode != "":
		return p.ErrorCode
	default:
		return fmt.Sprintf("payment %s", p.Status)
	}
}

type Provider interface {
	CreateOrder(ctx context.Context, params OrderParams) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	FetchOrderPayments(ctx context.Context, gatewayOrderID string) ([]Payment, error)
}
