package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation         = errors.New("validation")              // 400
	ErrAuthentication     = errors.New("authentication required") // 401
	ErrForbidden          = errors.New("forbidden")               // 403
	ErrNotFound           = errors.New("not found")               // 404
	ErrConflict           = errors.New("conflict")                // 409
	ErrPaymentFailed      = errors.New("payment failed")          // 402
	ErrReconciliation     = errors.New("reconciliation failed")   // 409
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// PaymentFailure is a decline or cancellation. The order stays Pending and
// payment can be retried against it.
type PaymentFailure struct {
	OrderID uuid.UUID
	Reason  string
}

func (e *PaymentFailure) Error() string {
	return fmt.Sprintf("payment failed for order %s: %s", e.OrderID, e.Reason)
}

func (e *PaymentFailure) Is(target error) bool {
	return target == ErrPaymentFailed
}

// ReconciliationError means a receipt could not be applied. The order is
// unchanged and the discrepancy is kept for manual review.
type ReconciliationError struct {
	OrderID          string
	GatewayPaymentID string
	Reason           string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile payment %q for order %s: %s", e.GatewayPaymentID, e.OrderID, e.Reason)
}

func (e *ReconciliationError) Is(target error) bool {
	return target == ErrReconciliation
}
