package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/service"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	authmw "github.com/Skotchmaster/shop_checkout/pkg/middleware/auth"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	items, err := h.Svc.GetCart(ctx, authmw.Credential(c))
	if err != nil {
		return httpError(l, "get_cart_error", err)
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *CartHTTP) Summary(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.summary")

	res, err := h.Svc.Summary(ctx, authmw.Credential(c))
	if err != nil {
		return httpError(l, "cart_summary_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_to_cart_error", "invalid body", err)
	}

	item, err := h.Svc.AddItem(ctx, authmw.Credential(c), req)
	if err != nil {
		return httpError(l, "add_to_cart_error", err)
	}

	l.Info("add_to_cart_success", "product_id", item.ProductID.String(), "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "update_cart_item_error", "id is not a uuid", err)
	}
	var req transport.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_cart_item_error", "invalid body", err)
	}

	item, err := h.Svc.UpdateItem(ctx, authmw.Credential(c), id, req.Quantity)
	if err != nil {
		return httpError(l, "update_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "remove_cart_item_error", "id is not a uuid", err)
	}

	if err := h.Svc.RemoveItem(ctx, authmw.Credential(c), id); err != nil {
		return httpError(l, "remove_cart_item_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	if err := h.Svc.Clear(ctx, authmw.Credential(c)); err != nil {
		return httpError(l, "clear_cart_error", err)
	}
	l.Info("clear_cart_success")
	return c.NoContent(http.StatusNoContent)
}
