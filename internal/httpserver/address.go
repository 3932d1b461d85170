package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_checkout/internal/addressbook"
	"github.com/Skotchmaster/shop_checkout/internal/service"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	authmw "github.com/Skotchmaster/shop_checkout/pkg/middleware/auth"
)

type AddressHTTP struct {
	Svc *service.AddressService
}

func (h *AddressHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.list")

	list, err := h.Svc.List(ctx, authmw.Credential(c))
	if err != nil {
		return httpError(l, "list_addresses_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": list})
}

func (h *AddressHTTP) Add(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.add")

	var req addressbook.Address
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_address_error", "invalid body", err)
	}

	addr, err := h.Svc.Add(ctx, authmw.Credential(c), req)
	if err != nil {
		return httpError(l, "add_address_error", err)
	}
	return c.JSON(http.StatusCreated, addr)
}

func (h *AddressHTTP) Edit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.edit")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "edit_address_error", "id is not a uuid", err)
	}
	var req addressbook.Address
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "edit_address_error", "invalid body", err)
	}

	addr, err := h.Svc.Edit(ctx, authmw.Credential(c), id, req)
	if err != nil {
		return httpError(l, "edit_address_error", err)
	}
	return c.JSON(http.StatusOK, addr)
}

func (h *AddressHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "delete_address_error", "id is not a uuid", err)
	}
	if err := h.Svc.Delete(ctx, authmw.Credential(c), id); err != nil {
		return httpError(l, "delete_address_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AddressHTTP) Select(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.select")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "select_address_error", "id is not a uuid", err)
	}
	if err := h.Svc.Select(ctx, authmw.Credential(c), id); err != nil {
		return httpError(l, "select_address_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
