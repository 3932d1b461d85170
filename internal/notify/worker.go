package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_checkout/internal/models"
)

type OrderSource interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Worker drains the job queue and sends the mail each job asks for.
type Worker struct {
	Queue       *Queue
	Orders      OrderSource
	Mailer      Mailer
	Logger      *slog.Logger
	PollTimeout time.Duration
	MaxAttempts int
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *Worker) Run(ctx context.Context) {
	poll := w.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}
	l := w.logger().With("component", "email_worker")
	l.Info("email_worker_started")

	for {
		if ctx.Err() != nil {
			l.Info("email_worker_stopped")
			return
		}

		job, err := w.Queue.Dequeue(ctx, poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.Warn("dequeue_error", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		w.Handle(ctx, *job)
	}
}

// Handle processes one job, requeueing it on failure until MaxAttempts.
func (w *Worker) Handle(ctx context.Context, job Job) {
	l := w.logger().With("job_id", job.ID, "job_type", job.Type, "order_id", job.OrderID.String())

	var err error
	switch job.Type {
	case JobOrderConfirmation:
		err = w.sendOrderConfirmation(ctx, job.OrderID)
	default:
		l.Warn("unknown_job_type")
		return
	}
	if err == nil {
		l.Info("job_done")
		return
	}

	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if job.Attempts+1 >= maxAttempts {
		l.Error("job_dropped", "attempts", job.Attempts+1, "error", err)
		return
	}
	if rqErr := w.Queue.Requeue(ctx, job); rqErr != nil {
		l.Error("job_requeue_error", "error", rqErr, "cause", err)
		return
	}
	l.Warn("job_requeued", "attempts", job.Attempts+1, "error", err)
}

func (w *Worker) sendOrderConfirmation(ctx context.Context, orderID uuid.UUID) error {
	order, err := w.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order.ContactEmail == "" {
		w.logger().Info("order_confirmation_skipped", "order_id", orderID.String(), "reason", "no contact email")
		return nil
	}
	return w.Mailer.Send(ctx, RenderOrderConfirmation(order))
}

func RenderOrderConfirmation(o *models.Order) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your order %s.\n\n", o.ShippingAddress.Name, o.ID)
	for _, it := range o.Items {
		line := it.Name
		if it.Size != "" {
			line += " (" + it.Size + ")"
		}
		fmt.Fprintf(&b, "  %d x %s  %s %s\n", it.Quantity, line, it.LineTotal.StringFixed(2), o.Currency)
	}
	fmt.Fprintf(&b, "\nShipping: %s %s\n", o.ShippingCost.StringFixed(2), o.Currency)
	fmt.Fprintf(&b, "Total (incl. tax %s): %s %s\n", o.TaxAmount.StringFixed(2), o.TotalPrice.StringFixed(2), o.Currency)
	fmt.Fprintf(&b, "Payment: %s, status %s\n", o.PaymentMethod, o.Status)
	a := o.ShippingAddress
	fmt.Fprintf(&b, "\nShipping to:\n%s\n%s\n%s, %s %s\n%s\n", a.Name, a.Street, a.City, a.State, a.PostalCode, a.Country)

	return Message{
		To:      o.ContactEmail,
		Subject: fmt.Sprintf("Order confirmation #%s", strings.ToUpper(o.ID.String()[:8])),
		Text:    b.String(),
	}
}
