package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_checkout/internal/models"
)

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByPaymentID returns the order a provider payment was recorded on.
func (r *GormRepo) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Where("gateway_payment_id = ?", paymentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := q.Preload("Items").Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// ListAllOrders is the back-office view; an empty status lists everything.
func (r *GormRepo) ListAllOrders(ctx context.Context, status models.OrderStatus, limit, offset int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := q.Preload("Items").Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// MarkPaid moves a Pending order to Paid. It reports false when the order
// was not Pending at write time, so exactly one caller wins.
func (r *GormRepo) MarkPaid(ctx context.Context, id uuid.UUID, paymentID *string, gatewayOrderID string, paidAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":             models.StatusPaid,
		"gateway_payment_id": paymentID,
		"paid_at":            paidAt,
		"payment_error":      "",
	}
	if gatewayOrderID != "" {
		updates["gateway_order_id"] = gatewayOrderID
	}

	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetGatewayOrderID records the provider order once; later intents reuse it.
func (r *GormRepo) SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND (gateway_order_id IS NULL OR gateway_order_id = '')", id, models.StatusPending).
		Update("gateway_order_id", gatewayOrderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordPaymentFailure keeps the latest decline reason on a Pending order.
func (r *GormRepo) RecordPaymentFailure(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("payment_error", reason)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, error) {
	updates := map[string]any{"status": to}
	if to == models.StatusCancelled {
		updates["cancelled_at"] = time.Now().UTC()
	}

	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListStalePending returns online orders still awaiting payment that were
// created before cutoff.
func (r *GormRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND payment_method = ? AND created_at < ?", models.StatusPending, models.PaymentOnline, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormRepo) CreateDiscrepancy(ctx context.Context, d *models.PaymentDiscrepancy) error {
	return r.DB.WithContext(ctx).Create(d).Error
}

func (r *GormRepo) ListDiscrepancies(ctx context.Context, limit, offset int) (int64, []models.PaymentDiscrepancy, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.PaymentDiscrepancy{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var out []models.PaymentDiscrepancy
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return 0, nil, err
	}
	return total, out, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
