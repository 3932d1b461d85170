package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_checkout/internal/service"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/internal/util"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	authmw "github.com/Skotchmaster/shop_checkout/pkg/middleware/auth"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	var req transport.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.PlaceOrder(ctx, authmw.Credential(c), req)
	if err != nil {
		return httpError(l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID.String(), "status", order.Status)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	res, err := h.Svc.ListOrders(ctx, authmw.Credential(c), page, size)
	if err != nil {
		return httpError(l, "get_orders_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "get_order_error", "id is not a uuid", err)
	}

	order, err := h.Svc.GetOrder(ctx, authmw.Credential(c), id)
	if err != nil {
		return httpError(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "cancel_order_error", "id is not a uuid", err)
	}

	order, err := h.Svc.CancelOrder(ctx, authmw.Credential(c), id)
	if err != nil {
		return httpError(l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success")
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) ListAll(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_all")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	res, err := h.Svc.ListAll(ctx, authmw.Credential(c), c.QueryParam("status"), page, size)
	if err != nil {
		return httpError(l, "list_all_orders_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "update_order_status_error", "id is not a uuid", err)
	}
	var req transport.UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_order_status_error", "invalid body", err)
	}

	order, err := h.Svc.UpdateStatus(ctx, authmw.Credential(c), id, req.Status)
	if err != nil {
		return httpError(l, "update_order_status_error", err)
	}

	l.Info("update_order_status_success", "status", order.Status)
	return c.JSON(http.StatusOK, order)
}
