package httpserver

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_checkout/internal/service"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/internal/util"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	authmw "github.com/Skotchmaster/shop_checkout/pkg/middleware/auth"
)

const (
	WebhookSignatureHeader = "X-Razorpay-Signature"
	maxWebhookBody         = 1 << 20
)

type PaymentHTTP struct {
	Svc        *service.PaymentService
	Reconciler *service.Reconciler
}

func (h *PaymentHTTP) CreateIntent(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.create_intent")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "create_payment_intent_error", "id is not a uuid", err)
	}

	intent, err := h.Svc.CreateIntent(ctx, authmw.Credential(c), id)
	if err != nil {
		return httpError(l, "create_payment_intent_error", err)
	}

	l.Info("create_payment_intent_success", "gateway_order_id", intent.GatewayOrderID)
	return c.JSON(http.StatusOK, intent)
}

func (h *PaymentHTTP) Pay(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.pay")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "pay_order_error", "id is not a uuid", err)
	}
	var req transport.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "pay_order_error", "invalid body", err)
	}

	order, err := h.Svc.ConfirmPayment(ctx, authmw.Credential(c), id, req)
	if err != nil {
		return httpError(l, "pay_order_error", err)
	}

	l.Info("pay_order_success", "status", order.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *PaymentHTTP) ReportFailure(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.report_failure")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "payment_failure_error", "id is not a uuid", err)
	}
	var req transport.PaymentFailureRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "payment_failure_error", "invalid body", err)
	}

	res, err := h.Svc.ReportFailure(ctx, authmw.Credential(c), id, req)
	if err != nil {
		return httpError(l, "payment_failure_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *PaymentHTTP) Status(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.status")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "payment_status_error", "id is not a uuid", err)
	}

	res, err := h.Svc.SyncStatus(ctx, authmw.Credential(c), id)
	if err != nil {
		return httpError(l, "payment_status_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

// Webhook needs the raw body for the signature check, so it reads the
// request itself instead of binding.
func (h *PaymentHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.webhook")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(l, "payment_webhook_error", "cannot read body", err)
	}

	if err := h.Svc.HandleWebhook(ctx, body, c.Request().Header.Get(WebhookSignatureHeader)); err != nil {
		return httpError(l, "payment_webhook_error", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PaymentHTTP) Discrepancies(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.discrepancies")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	res, err := h.Reconciler.ListDiscrepancies(ctx, authmw.Credential(c), page, size)
	if err != nil {
		return httpError(l, "list_discrepancies_error", err)
	}
	return c.JSON(http.StatusOK, res)
}
