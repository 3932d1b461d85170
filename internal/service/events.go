package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_checkout/internal/notify"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
)

const (
	TopicOrderEvents   = "order_events"
	TopicProductEvents = "product_events"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Notifier interface {
	Enqueue(ctx context.Context, job notify.Job) (bool, error)
}

// publish is best-effort: a broker outage is logged and never fails the caller.
func publish(ctx context.Context, p Publisher, topic, key string, event map[string]any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	event["at"] = time.Now().UTC()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_error", "topic", topic, "type", event["type"], "error", err)
	}
}

// notifyOrderConfirmed enqueues the confirmation email. Queue outages are
// swallowed with a warning.
func notifyOrderConfirmed(ctx context.Context, n Notifier, orderID uuid.UUID) {
	if n == nil {
		return
	}
	l := logging.FromContext(ctx)
	fresh, err := n.Enqueue(context.WithoutCancel(ctx), notify.OrderConfirmation(orderID))
	if err != nil {
		l.Warn("enqueue_notification_error", "order_id", orderID.String(), "error", err)
		return
	}
	if !fresh {
		l.Info("notification_already_queued", "order_id", orderID.String())
	}
}
