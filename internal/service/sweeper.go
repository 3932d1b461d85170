package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
)

// Sweeper cancels online orders left Pending longer than TTL. A zero TTL
// disables it. Cancellation uses the same conditional update as payment,
// so an order paid in the meantime is never touched. With Payments set, an
// order that has a provider order is first checked at the provider, and a
// captured payment is applied instead of cancelling. Orders the provider
// cannot be asked about are left for the next sweep.
type Sweeper struct {
	Repo     *repo.GormRepo
	Payments *PaymentService
	Events   Publisher
	Logger   *slog.Logger
	TTL      time.Duration
	Interval time.Duration
	Batch    int
}

func (s *Sweeper) Run(ctx context.Context) {
	if s.TTL <= 0 {
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	l := s.logger()
	l.Info("order_sweeper_started", "ttl", s.TTL.String(), "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				l.Error("order_sweep_error", "error", err)
			}
		case <-ctx.Done():
			l.Info("order_sweeper_stopped")
			return
		}
	}
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// SweepOnce cancels one batch of stale orders and reports how many it
// actually cancelled.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}

	ids, err := s.Repo.ListStalePending(ctx, time.Now().Add(-s.TTL), batch)
	if err != nil {
		return 0, err
	}

	ctx = logging.IntoContext(ctx, s.logger())
	cancelled := 0
	for _, id := range ids {
		if s.Payments != nil {
			settled, err := s.settle(ctx, id)
			if err != nil {
				s.logger().Warn("stale_order_sync_error", "order_id", id.String(), "error", err)
				continue
			}
			if settled {
				s.logger().Info("stale_order_paid_at_provider", "order_id", id.String())
				continue
			}
		}

		ok, err := s.Repo.UpdateOrderStatus(ctx, id, models.StatusPending, models.StatusCancelled)
		if err != nil {
			s.logger().Error("cancel_stale_order_error", "order_id", id.String(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		cancelled++
		s.logger().Info("stale_order_cancelled", "order_id", id.String())
		publish(ctx, s.Events, TopicOrderEvents, id.String(), map[string]any{
			"type":    "order_cancelled",
			"orderID": id,
			"status":  models.StatusCancelled,
			"reason":  "payment not completed in time",
		})
	}
	return cancelled, nil
}

func (s *Sweeper) settle(ctx context.Context, id uuid.UUID) (bool, error) {
	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return false, err
	}
	return s.Payments.settle(ctx, order, SourcePoll)
}
