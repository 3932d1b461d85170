package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_checkout/internal/service"
)

const contactSupport = "we could not verify this payment, please contact support"

// httpError logs err under event and maps it to the response status.
func httpError(l *slog.Logger, event string, err error) error {
	var pf *service.PaymentFailure

	switch {
	case errors.Is(err, service.ErrValidation):
		l.Warn(event, "status", http.StatusBadRequest, "reason", "invalid request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthentication):
		l.Warn(event, "status", http.StatusUnauthorized, "reason", "unauthenticated", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	case errors.Is(err, service.ErrForbidden):
		l.Warn(event, "status", http.StatusForbidden, "reason", "forbidden", "error", err)
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", http.StatusNotFound, "reason", "not found", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &pf):
		l.Warn(event, "status", http.StatusPaymentRequired, "reason", pf.Reason, "error", err)
		return echo.NewHTTPError(http.StatusPaymentRequired, map[string]any{
			"message":   "payment failed",
			"reason":    pf.Reason,
			"retryable": true,
		})
	case errors.Is(err, service.ErrReconciliation):
		l.Error(event, "status", http.StatusConflict, "reason", "reconciliation rejected", "error", err)
		return echo.NewHTTPError(http.StatusConflict, contactSupport)
	case errors.Is(err, service.ErrConflict):
		l.Warn(event, "status", http.StatusConflict, "reason", "conflict", "error", err)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGatewayUnavailable):
		l.Error(event, "status", http.StatusBadGateway, "reason", "payment provider unavailable", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable, try again")
	default:
		l.Error(event, "status", http.StatusInternalServerError, "reason", "internal error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}
