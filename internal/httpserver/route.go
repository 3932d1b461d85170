package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/shop_checkout/pkg/middleware/auth"
)

type Deps struct {
	CatalogHandler *CatalogHTTP
	CartHandler    *CartHTTP
	AddressHandler *AddressHTTP
	OrderHandler   *OrderHTTP
	PaymentHandler *PaymentHTTP
	JWTSecret      []byte
	Ready          func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAuthMiddleware(d.JWTSecret)

	api := e.Group("/api/v1")

	api.GET("/products", d.CatalogHandler.GetProducts)
	api.GET("/products/:id", d.CatalogHandler.GetProduct)
	api.POST("/webhooks/payments", d.PaymentHandler.Webhook)

	user := api.Group("", authMW.RequireAuth)

	user.GET("/cart", d.CartHandler.GetCart)
	user.GET("/cart/summary", d.CartHandler.Summary)
	user.POST("/cart/items", d.CartHandler.AddItem)
	user.PATCH("/cart/items/:id", d.CartHandler.UpdateItem)
	user.DELETE("/cart/items/:id", d.CartHandler.RemoveItem)
	user.DELETE("/cart", d.CartHandler.Clear)

	user.GET("/addresses", d.AddressHandler.List)
	user.POST("/addresses", d.AddressHandler.Add)
	user.PUT("/addresses/:id", d.AddressHandler.Edit)
	user.DELETE("/addresses/:id", d.AddressHandler.Delete)
	user.POST("/addresses/:id/select", d.AddressHandler.Select)

	user.POST("/orders", d.OrderHandler.CreateOrder)
	user.GET("/orders", d.OrderHandler.GetOrders)
	user.GET("/orders/:id", d.OrderHandler.GetOrder)
	user.POST("/orders/:id/cancel", d.OrderHandler.CancelOrder)
	user.POST("/orders/:id/payment-intent", d.PaymentHandler.CreateIntent)
	user.PUT("/orders/:id/pay", d.PaymentHandler.Pay)
	user.POST("/orders/:id/payment-failure", d.PaymentHandler.ReportFailure)
	user.GET("/orders/:id/payment-status", d.PaymentHandler.Status)

	admin := api.Group("/admin", authMW.RequireAdmin)

	admin.POST("/products", d.CatalogHandler.CreateProduct)
	admin.PATCH("/products/:id", d.CatalogHandler.PatchProduct)
	admin.DELETE("/products/:id", d.CatalogHandler.DeleteProduct)
	admin.GET("/orders", d.OrderHandler.ListAll)
	admin.PATCH("/orders/:id/status", d.OrderHandler.UpdateStatus)
	admin.GET("/discrepancies", d.PaymentHandler.Discrepancies)
}
