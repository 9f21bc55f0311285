package repositories

import (
	"context"

	"shop-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	return translate(r.db.WithContext(ctx).Create(o).Error)
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *orderRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *orderRepo) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) Update(ctx context.Context, id string, u models.OrderUpdate) error {
	cols := u.Columns()
	if len(cols) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(cols)
	return res.Error
}

// Delete 连同明细和日志一起删除
func (r *orderRepo) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.OrderDetail{}).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", id).Delete(&models.OrderLog{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepo) ListDetails(ctx context.Context, orderID string) ([]models.OrderDetail, error) {
	var details []models.OrderDetail
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_id ASC").
		Find(&details).Error
	return details, err
}

func (r *orderRepo) CreateDetail(ctx context.Context, d *models.OrderDetail) error {
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

func (r *orderRepo) UpdateDetailQuantity(ctx context.Context, detailID string, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderDetail{}).
		Where("id = ?", detailID).
		Update("quantity", qty).Error
}

func (r *orderRepo) DeleteDetail(ctx context.Context, detailID string) error {
	return r.db.WithContext(ctx).Where("id = ?", detailID).Delete(&models.OrderDetail{}).Error
}

func (r *orderRepo) AppendLog(ctx context.Context, l *models.OrderLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *orderRepo) ListLogs(ctx context.Context, orderID string) ([]models.OrderLog, error) {
	var logs []models.OrderLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

func (r *orderRepo) HasCompletedPurchase(ctx context.Context, customerID, productID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Joins("JOIN order_details ON order_details.order_id = orders.id").
		Where("orders.customer_id = ? AND orders.status = ? AND order_details.product_id = ?",
			customerID, models.StatusCompleted, productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
