package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_checkout/internal/models"
)

func (r *GormRepo) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) CreateAddress(ctx context.Context, addr *models.Address) error {
	return r.DB.WithContext(ctx).Create(addr).Error
}

func (r *GormRepo) UpdateAddress(ctx context.Context, addr *models.Address) error {
	res := r.DB.WithContext(ctx).Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addr.ID, addr.UserID).
		Updates(map[string]any{
			"label":       addr.Label,
			"name":        addr.Name,
			"phone":       addr.Phone,
			"street":      addr.Street,
			"city":        addr.City,
			"state":       addr.State,
			"postal_code": addr.PostalCode,
			"country":     addr.Country,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) DeleteAddress(ctx context.Context, userID, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Address{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) SelectAddress(ctx context.Context, userID, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Address{}).
			Where("user_id = ? AND selected = ?", userID, true).
			Update("selected", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Address{}).Where("id = ? AND user_id = ?", id, userID).Update("selected", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
