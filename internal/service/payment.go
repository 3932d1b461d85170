package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/shop_checkout/internal/gateway"
	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

// PaymentService drives online payments for orders. A client callback is
// never trusted on its own: its signature is checked and the payment is
// looked up at the provider before it reaches the Reconciler.
type PaymentService struct {
	Repo       *repo.GormRepo
	Provider   gateway.Provider
	Reconciler *Reconciler

	KeyID          string
	KeySecret      string
	WebhookSecret  string
	MerchantName   string
	ConfirmTimeout time.Duration

	sfg singleflight.Group // one provider verification per order+payment
}

// providerError maps any provider-side failure, including rejected
// requests, to ErrGatewayUnavailable.
func providerError(err error) error {
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

func (s *PaymentService) payableOrder(ctx context.Context, cred *tokens.Credential, orderID uuid.UUID) (*models.Order, error) {
	order, err := ownedOrder(ctx, s.Repo, cred, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != models.PaymentOnline {
		return nil, fmt.Errorf("%w: order %s is not paid online", ErrValidation, order.ID)
	}
	return order, nil
}

// CreateIntent reserves a provider order for the order total. The provider
// order is created once and reused by later attempts.
func (s *PaymentService) CreateIntent(ctx context.Context, cred *tokens.Credential, orderID uuid.UUID) (*transport.PaymentIntentResponse, error) {
	l := logging.FromContext(ctx)

	order, err := s.payableOrder(ctx, cred, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrConflict, order.Status)
	}

	amountMinor := pricing.ToMinor(order.TotalPrice)
	gwOrderID := order.GatewayOrderID
	if gwOrderID == "" {
		gw, err := s.Provider.CreateOrder(ctx, gateway.OrderParams{
			AmountMinor: amountMinor,
			Currency:    order.Currency,
			Receipt:     order.ID.String(),
			Notes:       map[string]string{"order_id": order.ID.String()},
		})
		if err != nil {
			l.Error("create_gateway_order_error", "order_id", order.ID.String(), "error", err)
			return nil, providerError(err)
		}

		stored, err := s.Repo.SetGatewayOrderID(ctx, order.ID, gw.ID)
		if err != nil {
			return nil, err
		}
		if stored {
			gwOrderID = gw.ID
			l.Info("gateway_order_created", "order_id", order.ID.String(), "gateway_order_id", gw.ID)
		} else {
			current, err := s.Repo.GetOrder(ctx, order.ID)
			if err != nil {
				return nil, err
			}
			if current.Status != models.StatusPending || current.GatewayOrderID == "" {
				return nil, fmt.Errorf("%w: order is %s", ErrConflict, current.Status)
			}
			gwOrderID = current.GatewayOrderID
		}
	}

	prefill := map[string]string{
		"name":    order.ShippingAddress.Name,
		"contact": order.ShippingAddress.Phone,
	}
	if order.ContactEmail != "" {
		prefill["email"] = order.ContactEmail
	}

	return &transport.PaymentIntentResponse{
		OrderID:        order.ID,
		GatewayOrderID: gwOrderID,
		Amount:         order.TotalPrice,
		AmountMinor:    amountMinor,
		Currency:       order.Currency,
		ClientConfig: transport.ClientConfig{
			KeyID:                 s.KeyID,
			MerchantName:          s.MerchantName,
			ConfirmTimeoutSeconds: int(s.ConfirmTimeout / time.Second),
			Prefill:               prefill,
		},
	}, nil
}

// ConfirmPayment handles the client's success callback.
func (s *PaymentService) ConfirmPayment(ctx context.Context, cred *tokens.Credential, orderID uuid.UUID, req transport.ConfirmPaymentRequest) (*models.Order, error) {
	order, err := s.payableOrder(ctx, cred, orderID)
	if err != nil {
		return nil, err
	}

	paymentID := strings.TrimSpace(req.GatewayPaymentID)
	if paymentID == "" || req.Signature == "" {
		return nil, fmt.Errorf("%w: gateway_payment_id and signature required", ErrValidation)
	}
	gwOrderID := strings.TrimSpace(req.GatewayOrderID)
	if gwOrderID == "" {
		gwOrderID = order.GatewayOrderID
	}

	if !gateway.VerifyPaymentSignature(s.KeySecret, gwOrderID, paymentID, req.Signature) {
		return nil, s.Reconciler.reject(ctx, Receipt{
			OrderID:          order.ID,
			GatewayPaymentID: paymentID,
			GatewayOrderID:   gwOrderID,
			Source:           SourceClient,
		}, nil, "invalid payment signature")
	}

	if _, err := s.verify(ctx, order.ID, paymentID, SourceClient); err != nil {
		return nil, err
	}
	return s.Repo.GetOrder(ctx, order.ID)
}

// verify looks the payment up at the provider and applies it. Concurrent
// calls for the same payment share one lookup.
func (s *PaymentService) verify(ctx context.Context, orderID uuid.UUID, paymentID, source string) (models.OrderStatus, error) {
	v, err, _ := s.sfg.Do(orderID.String()+":"+paymentID, func() (any, error) {
		p, err := s.Provider.FetchPayment(ctx, paymentID)
		if errors.Is(err, gateway.ErrNotFound) {
			return models.OrderStatus(""), s.Reconciler.reject(ctx, Receipt{
				OrderID:          orderID,
				GatewayPaymentID: paymentID,
				Source:           source,
			}, nil, "payment unknown to provider")
		}
		if err != nil {
			return models.OrderStatus(""), providerError(err)
		}
		return s.apply(ctx, orderID, *p, source)
	})
	if err != nil {
		return "", err
	}
	return v.(models.OrderStatus), nil
}

// apply hands a provider-side payment to the Reconciler, or records the
// decline when the provider did not take the money.
func (s *PaymentService) apply(ctx context.Context, orderID uuid.UUID, p gateway.Payment, source string) (models.OrderStatus, error) {
	if noted := p.Notes["order_id"]; noted != "" && noted != orderID.String() {
		return "", s.Reconciler.reject(ctx, Receipt{
			OrderID:          orderID,
			GatewayPaymentID: p.ID,
			GatewayOrderID:   p.OrderID,
			Amount:           pricing.FromMinor(p.Amount),
			Currency:         p.Currency,
			Source:           source,
		}, nil, "payment belongs to another order")
	}
	if !p.Succeeded() {
		reason := p.FailureReason()
		s.recordFailure(ctx, orderID, reason, source)
		return "", &PaymentFailure{OrderID: orderID, Reason: reason}
	}

	paidAt := time.Now()
	if p.CreatedAt > 0 {
		paidAt = time.Unix(p.CreatedAt, 0)
	}
	return s.Reconciler.ApplyPayment(ctx, Receipt{
		OrderID:          orderID,
		GatewayPaymentID: p.ID,
		GatewayOrderID:   p.OrderID,
		Amount:           pricing.FromMinor(p.Amount),
		Currency:         p.Currency,
		PaidAt:           paidAt,
		Source:           source,
	})
}

func (s *PaymentService) recordFailure(ctx context.Context, orderID uuid.UUID, reason, source string) {
	l := logging.FromContext(ctx)
	l.Warn("payment_failed", "order_id", orderID.String(), "reason", reason, "source", source)
	if _, err := s.Repo.RecordPaymentFailure(ctx, orderID, reason); err != nil {
		l.Error("record_payment_failure_error", "order_id", orderID.String(), "error", err)
	}
}

// ReportFailure records a decline or a dismissed payment window. The order
// stays Pending and can be paid again.
func (s *PaymentService) ReportFailure(ctx context.Context, cred *tokens.Credential, orderID uuid.UUID, req transport.PaymentFailureRequest) (*transport.PaymentFailureResponse, error) {
	order, err := s.payableOrder(ctx, cred, orderID)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "payment cancelled by user"
	}
	if code := strings.TrimSpace(req.Code); code != "" {
		reason = code + ": " + reason
	}

	if order.Status == models.StatusPending {
		s.recordFailure(ctx, order.ID, reason, SourceClient)
		order.PaymentError = reason
	}

	return &transport.PaymentFailureResponse{
		Order:     order,
		Reason:    reason,
		Retryable: order.Status == models.StatusPending,
	}, nil
}

// SyncStatus is the fallback when the client never reports back: it asks
// the provider for the payments made against the order and applies a
// successful one.
func (s *PaymentService) SyncStatus(ctx context.Context, cred *tokens.Credential, orderID uuid.UUID) (*transport.PaymentStatusResponse, error) {
	l := logging.FromContext(ctx)

	order, err := s.payableOrder(ctx, cred, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.StatusPending && order.GatewayOrderID != "" {
		if _, err := s.settle(ctx, order, SourcePoll); err != nil {
			l.Warn("payment_status_sync_error", "order_id", order.ID.String(), "error", err)
		}
		if order, err = s.Repo.GetOrder(ctx, order.ID); err != nil {
			return nil, err
		}
	}

	return &transport.PaymentStatusResponse{
		OrderID:        order.ID,
		Status:         order.Status,
		GatewayOrderID: order.GatewayOrderID,
		PaidAt:         order.PaidAt,
		LastFailure:    order.PaymentError,
	}, nil
}

// settle asks the provider for the payments made against a Pending order's
// provider order and applies the first successful one. It reports whether
// a payment was applied.
func (s *PaymentService) settle(ctx context.Context, order *models.Order, source string) (bool, error) {
	if order.Status != models.StatusPending || order.GatewayOrderID == "" {
		return false, nil
	}
	payments, err := s.Provider.FetchOrderPayments(ctx, order.GatewayOrderID)
	if err != nil {
		return false, providerError(err)
	}

	l := logging.FromContext(ctx)
	for _, p := range payments {
		if !p.Succeeded() {
			continue
		}
		if _, err := s.verify(ctx, order.ID, p.ID, source); err != nil {
			l.Warn("payment_status_sync_error", "order_id", order.ID.String(), "gateway_payment_id", p.ID, "error", err)
			continue
		}
		return true, nil
	}
	return false, nil
}

// HandleWebhook applies a provider-signed payment event. Unhandled event
// types are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	l := logging.FromContext(ctx)

	if !gateway.VerifyWebhookSignature(s.WebhookSecret, body, signature) {
		return fmt.Errorf("%w: invalid webhook signature", ErrAuthentication)
	}
	ev, err := gateway.ParseWebhook(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	p := ev.Payment()
	switch ev.Event {
	case gateway.EventPaymentCaptured, gateway.EventPaymentAuthorized, gateway.EventPaymentFailed:
	default:
		l.Info("webhook_ignored", "event", ev.Event)
		return nil
	}

	orderID, err := s.webhookOrderID(ctx, p)
	if err != nil {
		return err
	}
	if orderID == uuid.Nil && ev.Event == gateway.EventPaymentFailed {
		l.Warn("webhook_failed_payment_unknown_order", "gateway_order_id", p.OrderID, "gateway_payment_id", p.ID)
		return nil
	}
	if orderID == uuid.Nil {
		return s.Reconciler.reject(ctx, Receipt{
			GatewayPaymentID: p.ID,
			GatewayOrderID:   p.OrderID,
			Amount:           pricing.FromMinor(p.Amount),
			Currency:         p.Currency,
			Source:           SourceWebhook,
		}, nil, "unknown order")
	}

	if ev.Event == gateway.EventPaymentFailed {
		s.recordFailure(ctx, orderID, p.FailureReason(), SourceWebhook)
		return nil
	}

	_, err, _ = s.sfg.Do(orderID.String()+":"+p.ID, func() (any, error) {
		return s.apply(ctx, orderID, p, SourceWebhook)
	})
	return err
}

// webhookOrderID finds the order from the notes set at intent time, falling
// back to the stored provider order id. uuid.Nil means no match.
func (s *PaymentService) webhookOrderID(ctx context.Context, p gateway.Payment) (uuid.UUID, error) {
	if raw := p.Notes["order_id"]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id, nil
		}
	}
	if p.OrderID == "" {
		return uuid.Nil, nil
	}
	order, err := s.Repo.GetOrderByGatewayOrderID(ctx, p.OrderID)
	if repo.IsNotFound(err) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return order.ID, nil
}
