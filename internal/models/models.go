package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"       json:"id"`
	Name        string          `gorm:"not null"                   json:"name"`
	Description string          `gorm:"not null"                   json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Sizes       string          `gorm:"not null;default:''"        json:"sizes"`
	Count       uint            `json:"count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// OffersSize reports whether size is sold. Products without sizes accept only "".
func (p *Product) OffersSize(size string) bool {
	if strings.TrimSpace(p.Sizes) == "" {
		return size == ""
	}
	for _, s := range strings.Split(p.Sizes, ",") {
		if strings.EqualFold(strings.TrimSpace(s), size) {
			return true
		}
	}
	return false
}

// CartItem keeps the unit price seen when the line was added.
type CartItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"                          json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_cart_line;not null"  json:"user_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_cart_line;not null"  json:"product_id"`
	Size      string          `gorm:"uniqueIndex:idx_cart_line;not null;default:''" json:"size"`
	Quantity  uint            `gorm:"default:1;check:quantity>0"                    json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"                   json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Label      string    `json:"label"`
	Name       string    `gorm:"not null" json:"name"`
	Phone      string    `gorm:"not null" json:"phone"`
	Street     string    `gorm:"not null" json:"street"`
	City       string    `gorm:"not null" json:"city"`
	State      string    `gorm:"not null" json:"state"`
	PostalCode string    `gorm:"not null" json:"postal_code"`
	Country    string    `gorm:"not null" json:"country"`
	Selected   bool      `gorm:"not null;default:false" json:"selected"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ShippingAddress is the copy embedded in an order.
type ShippingAddress struct {
	Label      string `json:"label"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusPaid       OrderStatus = "Paid"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// PaidOrLater is true once payment has been recorded and the order was not cancelled.
func (s OrderStatus) PaidOrLater() bool {
	switch s {
	case StatusPaid, StatusProcessing, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	return s == StatusPending || s == StatusCancelled || s.PaidOrLater()
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"                       json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null"                   json:"user_id"`
	ContactEmail    string          `json:"contact_email,omitempty"`
	Items           []OrderLine     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_"              json:"shipping_address"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(16);not null"                  json:"payment_method"`
	Status          OrderStatus     `gorm:"type:varchar(16);index;not null"            json:"status"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null"                json:"subtotal"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null"                json:"tax_amount"`
	ShippingCost    decimal.Decimal `gorm:"type:decimal(12,2);not null"                json:"shipping_cost"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null"                json:"total_price"`
	Currency        string          `gorm:"type:varchar(3);not null"                   json:"currency"`

	GatewayOrderID   string     `gorm:"index"  json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string    `gorm:"uniqueIndex" json:"gateway_payment_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	PaymentError     string     `json:"payment_error,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrderLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"    json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"          json:"product_id"`
	Name      string          `gorm:"not null"                    json:"name"`
	Size      string          `json:"size"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity  uint            `gorm:"check:quantity>0"            json:"quantity"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
}

func (l *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// PaymentDiscrepancy is a rejected receipt kept for manual review.
type PaymentDiscrepancy struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID          string           `gorm:"index"                json:"order_id"`
	GatewayOrderID   string           `json:"gateway_order_id"`
	GatewayPaymentID string           `json:"gateway_payment_id"`
	Amount           decimal.Decimal  `gorm:"type:decimal(12,2)"   json:"amount"`
	Expected         *decimal.Decimal `gorm:"type:decimal(12,2)"   json:"expected,omitempty"`
	Reason           string           `gorm:"not null"             json:"reason"`
	Source           string           `gorm:"not null"             json:"source"`
	CreatedAt        time.Time        `gorm:"index"                json:"created_at"`
}

func (d *PaymentDiscrepancy) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func All() []any {
	return []any{&Product{}, &CartItem{}, &Address{}, &Order{}, &OrderLine{}, &PaymentDiscrepancy{}}
}
