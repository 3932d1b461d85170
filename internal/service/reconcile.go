package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/internal/util"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

// Receipt sources.
const (
	SourceClient  = "client"
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// Receipt is a provider-confirmed successful payment for an order.
type Receipt struct {
	OrderID          uuid.UUID
	GatewayPaymentID string
	GatewayOrderID   string
	Amount           decimal.Decimal
	Currency         string
	PaidAt           time.Time
	Source           string
}

// Reconciler records successful payments against orders exactly once.
// Every path that can mark an order paid goes through ApplyPayment.
type Reconciler struct {
	Repo     *repo.GormRepo
	Events   Publisher
	Notifier Notifier
}

// ApplyPayment moves the receipt's order from Pending to Paid and clears the
// owner's cart. Re-applying the receipt that already paid the order returns
// the current status without side effects. Receipts that do not match a
// Pending online order are rejected with a *ReconciliationError and kept as
// a discrepancy; the order is left as it was.
func (r *Reconciler) ApplyPayment(ctx context.Context, rc Receipt) (models.OrderStatus, error) {
	l := logging.FromContext(ctx).With(
		"order_id", rc.OrderID.String(),
		"gateway_payment_id", rc.GatewayPaymentID,
		"source", rc.Source,
	)

	if rc.GatewayPaymentID == "" {
		return "", r.reject(ctx, rc, nil, "receipt has no payment id")
	}

	order, err := r.Repo.GetOrder(ctx, rc.OrderID)
	if repo.IsNotFound(err) {
		return "", r.reject(ctx, rc, nil, "unknown order")
	}
	if err != nil {
		return "", err
	}

	if order.PaymentMethod != models.PaymentOnline {
		return "", r.reject(ctx, rc, nil, "order is not an online payment order")
	}
	if order.Status.PaidOrLater() {
		if samePayment(order, rc.GatewayPaymentID) {
			l.Info("payment_already_applied", "status", order.Status)
			return order.Status, nil
		}
		return "", r.reject(ctx, rc, nil, "order already paid by another payment")
	}
	if order.Status != models.StatusPending {
		return "", r.reject(ctx, rc, nil, "order is "+string(order.Status))
	}
	if order.GatewayOrderID == "" {
		return "", r.reject(ctx, rc, nil, "order has no payment intent")
	}
	if rc.GatewayOrderID != order.GatewayOrderID {
		return "", r.reject(ctx, rc, nil, "gateway order does not belong to this order")
	}
	if rc.Currency != "" && !strings.EqualFold(rc.Currency, order.Currency) {
		return "", r.reject(ctx, rc, &order.TotalPrice, "currency mismatch")
	}
	if pricing.ToMinor(rc.Amount) != pricing.ToMinor(order.TotalPrice) {
		return "", r.reject(ctx, rc, &order.TotalPrice, "amount mismatch")
	}
	held, err := r.paidElsewhere(ctx, order.ID, rc.GatewayPaymentID)
	if err != nil {
		return "", err
	}
	if held {
		return "", r.reject(ctx, rc, nil, "payment already applied to another order")
	}

	paidAt := rc.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	paidAt = paidAt.UTC()

	var won bool
	err = r.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		paymentID := rc.GatewayPaymentID
		ok, err := tx.MarkPaid(ctx, order.ID, &paymentID, rc.GatewayOrderID, paidAt)
		if err != nil || !ok {
			return err
		}
		won = true
		return tx.ClearCart(ctx, order.UserID)
	})
	if err != nil {
		if held, herr := r.paidElsewhere(ctx, order.ID, rc.GatewayPaymentID); herr == nil && held {
			return "", r.reject(ctx, rc, nil, "payment already applied to another order")
		}
		return "", err
	}

	if !won {
		current, err := r.Repo.GetOrder(ctx, order.ID)
		if err != nil {
			return "", err
		}
		if current.Status.PaidOrLater() && samePayment(current, rc.GatewayPaymentID) {
			l.Info("payment_already_applied", "status", current.Status)
			return current.Status, nil
		}
		if current.Status.PaidOrLater() {
			return "", r.reject(ctx, rc, nil, "order already paid by another payment")
		}
		return "", r.reject(ctx, rc, nil, "order is "+string(current.Status))
	}

	l.Info("payment_applied", "amount", rc.Amount.StringFixed(2))
	notifyOrderConfirmed(ctx, r.Notifier, order.ID)
	publish(ctx, r.Events, TopicOrderEvents, order.ID.String(), map[string]any{
		"type":             "order_paid",
		"orderID":          order.ID,
		"userID":           order.UserID,
		"status":           models.StatusPaid,
		"paymentMethod":    order.PaymentMethod,
		"gatewayPaymentID": rc.GatewayPaymentID,
		"total":            order.TotalPrice.StringFixed(2),
		"currency":         order.Currency,
	})
	return models.StatusPaid, nil
}

// paidElsewhere reports whether paymentID is already recorded on an order
// other than orderID.
func (r *Reconciler) paidElsewhere(ctx context.Context, orderID uuid.UUID, paymentID string) (bool, error) {
	other, err := r.Repo.GetOrderByPaymentID(ctx, paymentID)
	if repo.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return other.ID != orderID, nil
}

func samePayment(o *models.Order, paymentID string) bool {
	return o.GatewayPaymentID != nil && *o.GatewayPaymentID == paymentID
}

func (r *Reconciler) reject(ctx context.Context, rc Receipt, expected *decimal.Decimal, reason string) error {
	rerr := &ReconciliationError{
		OrderID:          rc.OrderID.String(),
		GatewayPaymentID: rc.GatewayPaymentID,
		Reason:           reason,
	}

	l := logging.FromContext(ctx)
	l.Error("payment_reconciliation_rejected",
		"order_id", rerr.OrderID,
		"gateway_order_id", rc.GatewayOrderID,
		"gateway_payment_id", rc.GatewayPaymentID,
		"amount", rc.Amount.StringFixed(2),
		"source", rc.Source,
		"reason", reason,
	)

	d := &models.PaymentDiscrepancy{
		OrderID:          rerr.OrderID,
		GatewayOrderID:   rc.GatewayOrderID,
		GatewayPaymentID: rc.GatewayPaymentID,
		Amount:           rc.Amount,
		Expected:         expected,
		Reason:           reason,
		Source:           rc.Source,
	}
	if err := r.Repo.CreateDiscrepancy(context.WithoutCancel(ctx), d); err != nil {
		l.Error("store_discrepancy_error", "order_id", rerr.OrderID, "error", err)
	}
	return rerr
}

func (r *Reconciler) ListDiscrepancies(ctx context.Context, cred *tokens.Credential, page, size int) (*transport.Page[models.PaymentDiscrepancy], error) {
	if !cred.IsAdmin() {
		return nil, ErrForbidden
	}
	offset, limit := util.Calculate(page, size)
	total, rows, err := r.Repo.ListDiscrepancies(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.PaymentDiscrepancy{}
	}
	return &transport.Page[models.PaymentDiscrepancy]{Data: rows, Meta: util.Meta(page, offset, limit, total)}, nil
}
