package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shop_checkout/internal/addressbook"
	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/util"
)

type PatchProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Sizes       *[]string        `json:"sizes"`
	Count       *uint            `json:"count"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Sizes       []string        `json:"sizes"`
	Count       uint            `json:"count"`
}

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Size      string    `json:"size"`
	Quantity  uint      `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity uint `json:"quantity"`
}

type CartResponse struct {
	Items   []models.CartItem `json:"items"`
	Summary pricing.Breakdown `json:"summary"`
}

// PlaceOrderRequest takes either an inline address or a saved address id.
// With neither, the selected saved address is used.
type PlaceOrderRequest struct {
	ShippingAddress *addressbook.Address `json:"shipping_address"`
	AddressID       *uuid.UUID           `json:"address_id"`
	PaymentMethod   string               `json:"payment_method"`
}

type ClientConfig struct {
	KeyID                 string            `json:"key_id"`
	MerchantName          string            `json:"merchant_name"`
	ConfirmTimeoutSeconds int               `json:"confirm_timeout_seconds"`
	Prefill               map[string]string `json:"prefill,omitempty"`
}

type PaymentIntentResponse struct {
	OrderID        uuid.UUID       `json:"order_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Amount         decimal.Decimal `json:"amount"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	ClientConfig   ClientConfig    `json:"client_config"`
}

type ConfirmPaymentRequest struct {
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	Signature        string `json:"signature"`
}

type PaymentFailureRequest struct {
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

type PaymentFailureResponse struct {
	Order     *models.Order `json:"order"`
	Reason    string        `json:"reason"`
	Retryable bool          `json:"retryable"`
}

type PaymentStatusResponse struct {
	OrderID        uuid.UUID          `json:"order_id"`
	Status         models.OrderStatus `json:"status"`
	GatewayOrderID string             `json:"gateway_order_id,omitempty"`
	PaidAt         *time.Time         `json:"paid_at,omitempty"`
	LastFailure    string             `json:"last_failure,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type Page[T any] struct {
	Data []T          `json:"data"`
	Meta util.PageMeta `json:"meta"`
}
