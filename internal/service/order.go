package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shop_checkout/internal/addressbook"
	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/internal/util"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

// Staff may only move orders forward along fulfilment. Pending and Paid are
// reached through checkout and reconciliation, never set by hand.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:    {models.StatusCancelled},
	models.StatusPaid:       {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:    {models.StatusDelivered},
}

func canTransition(from, to models.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type OrderService struct {
	Repo      *repo.GormRepo
	Addresses *AddressService
	Policy    pricing.Policy
	Currency  string
	Events    Publisher
	Notifier  Notifier
}

func (s *OrderService) currency() string {
	if s.Currency == "" {
		return "INR"
	}
	return s.Currency
}

func shippingFrom(a addressbook.Address) models.ShippingAddress {
	return models.ShippingAddress{
		Label:      a.Label,
		Name:       a.Name,
		Phone:      a.Phone,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// resolveAddress picks the inline address, then the saved one named by id,
// then the selected saved address.
func (s *OrderService) resolveAddress(ctx context.Context, cred *tokens.Credential, req transport.PlaceOrderRequest) (addressbook.Address, error) {
	if req.ShippingAddress != nil {
		a, err := addressbook.Validate(*req.ShippingAddress)
		if err != nil {
			return a, addressError(err)
		}
		return a, nil
	}
	if s.Addresses == nil {
		return addressbook.Address{}, fmt.Errorf("%w: shipping_address required", ErrValidation)
	}

	book, err := s.Addresses.Book(ctx, cred)
	if err != nil {
		return addressbook.Address{}, err
	}

	var (
		entry addressbook.Entry
		ok    bool
	)
	if req.AddressID != nil {
		entry, ok = book.Get(*req.AddressID)
		if !ok {
			return addressbook.Address{}, fmt.Errorf("%w: unknown address_id", ErrValidation)
		}
	} else if entry, ok = book.Selected(); !ok {
		return addressbook.Address{}, fmt.Errorf("%w: shipping_address required", ErrValidation)
	}

	a, err := addressbook.Validate(entry.Address)
	if err != nil {
		return a, addressError(err)
	}
	return a, nil
}

// orderLines prices the cart at current catalog prices.
func (s *OrderService) orderLines(ctx context.Context, items []models.CartItem) ([]models.OrderLine, []pricing.Line, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]models.OrderLine, 0, len(items))
	priced := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: product %s is no longer available", ErrValidation, it.ProductID)
		}
		if !p.OffersSize(it.Size) {
			return nil, nil, fmt.Errorf("%w: size %q is no longer offered for %s", ErrValidation, it.Size, p.Name)
		}
		lines = append(lines, models.OrderLine{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      it.Size,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			LineTotal: p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2),
		})
		priced = append(priced, pricing.Line{UnitPrice: p.Price, Quantity: it.Quantity})
	}
	return lines, priced, nil
}

// PlaceOrder turns the caller's cart into an order. COD orders are paid on
// the spot and empty the cart. ONLINE orders stay Pending with the cart
// intact until a payment is reconciled.
func (s *OrderService) PlaceOrder(ctx context.Context, cred *tokens.Credential, req transport.PlaceOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx)

	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}

	method := models.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod)))
	if !method.Valid() {
		return nil, fmt.Errorf("%w: payment_method must be COD or ONLINE", ErrValidation)
	}

	addr, err := s.resolveAddress(ctx, cred, req)
	if err != nil {
		return nil, err
	}

	items, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	lines, priced, err := s.orderLines(ctx, items)
	if err != nil {
		return nil, err
	}
	totals := pricing.Calculate(priced, s.Policy)

	order := &models.Order{
		UserID:          userID,
		ContactEmail:    cred.Email,
		Items:           lines,
		ShippingAddress: shippingFrom(addr),
		PaymentMethod:   method,
		Status:          models.StatusPending,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.TaxAmount,
		ShippingCost:    totals.ShippingCost,
		TotalPrice:      totals.GrandTotal,
		Currency:        s.currency(),
	}

	if method == models.PaymentOnline {
		if _, err := s.Repo.CreateOrder(ctx, order); err != nil {
			return nil, err
		}
		l.Info("order_placed", "order_id", order.ID.String(), "payment_method", method, "total", order.TotalPrice.StringFixed(2))
		s.publishOrder(ctx, "order_placed", order)
		return order, nil
	}

	paidAt := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		ok, err := tx.MarkPaid(ctx, order.ID, nil, "", paidAt)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s left Pending before confirmation", ErrConflict, order.ID)
		}
		return tx.ClearCart(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	order.Status = models.StatusPaid
	order.PaidAt = &paidAt

	l.Info("order_placed", "order_id", order.ID.String(), "payment_method", method, "total", order.TotalPrice.StringFixed(2))
	notifyOrderConfirmed(ctx, s.Notifier, order.ID)
	s.publishOrder(ctx, "order_placed", order)
	s.publishOrder(ctx, "order_paid", order)
	return order, nil
}

func (s *OrderService) publishOrder(ctx context.Context, typ string, o *models.Order) {
	publish(ctx, s.Events, TopicOrderEvents, o.ID.String(), map[string]any{
		"type":          typ,
		"orderID":       o.ID,
		"userID":        o.UserID,
		"status":        o.Status,
		"paymentMethod": o.PaymentMethod,
		"total":         o.TotalPrice.StringFixed(2),
		"currency":      o.Currency,
	})
}

// ownedOrder returns the order when the caller owns it or is staff.
func ownedOrder(ctx context.Context, r *repo.GormRepo, cred *tokens.Credential, id uuid.UUID) (*models.Order, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}
	order, err := r.GetOrder(ctx, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && !cred.IsAdmin() {
		return nil, fmt.Errorf("%w: order %s", ErrForbidden, id)
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, cred *tokens.Credential, id uuid.UUID) (*models.Order, error) {
	return ownedOrder(ctx, s.Repo, cred, id)
}

func (s *OrderService) ListOrders(ctx context.Context, cred *tokens.Credential, page, size int) (*transport.Page[models.Order], error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}
	offset, limit := util.Calculate(page, size)
	total, orders, err := s.Repo.ListOrders(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &transport.Page[models.Order]{Data: orders, Meta: util.Meta(page, offset, limit, total)}, nil
}

// CancelOrder lets the owner abandon an order that has not been paid.
func (s *OrderService) CancelOrder(ctx context.Context, cred *tokens.Credential, id uuid.UUID) (*models.Order, error) {
	order, err := ownedOrder(ctx, s.Repo, cred, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrConflict, order.Status)
	}
	return s.transition(ctx, order, models.StatusCancelled)
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, to models.OrderStatus) (*models.Order, error) {
	from := order.Status
	ok, err := s.Repo.UpdateOrderStatus(ctx, order.ID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrConflict, order.ID)
	}

	updated, err := s.Repo.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("order_status_changed", "order_id", order.ID.String(), "from", from, "to", to)
	s.publishOrder(ctx, "order_status_changed", updated)
	return updated, nil
}

// UpdateStatus is the back-office override along the fulfilment chain.
func (s *OrderService) UpdateStatus(ctx context.Context, cred *tokens.Credential, id uuid.UUID, status string) (*models.Order, error) {
	if !cred.IsAdmin() {
		return nil, ErrForbidden
	}
	to := models.OrderStatus(status)
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	order, err := s.Repo.GetOrder(ctx, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if !canTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", ErrValidation, order.Status, to)
	}
	return s.transition(ctx, order, to)
}

func (s *OrderService) ListAll(ctx context.Context, cred *tokens.Credential, status string, page, size int) (*transport.Page[models.Order], error) {
	if !cred.IsAdmin() {
		return nil, ErrForbidden
	}
	st := models.OrderStatus(status)
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	offset, limit := util.Calculate(page, size)
	total, orders, err := s.Repo.ListAllOrders(ctx, st, limit, offset)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &transport.Page[models.Order]{Data: orders, Meta: util.Meta(page, offset, limit, total)}, nil
}
