package repositories

import (
	"context"
	"time"

	"shop-service/models"

	"gorm.io/gorm"
)

type customerRepo struct {
	db *gorm.DB
}

func (r *customerRepo) Create(ctx context.Context, c *models.Customer) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *customerRepo) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *customerRepo) DebitPoints(ctx context.Context, id string, points int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE customers SET coupon_points = coupon_points - ?, updated_at = ? WHERE id = ? AND coupon_points >= ?",
		points, time.Now().UTC(), id, points,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *customerRepo) CreditPoints(ctx context.Context, id string, points int) error {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE customers SET coupon_points = coupon_points + ?, updated_at = ? WHERE id = ?",
		points, time.Now().UTC(), id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
