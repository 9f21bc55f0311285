package repositories

import (
	"context"
	"time"

	"shop-service/models"

	"gorm.io/gorm"
)

type voucherRepo struct {
	db *gorm.DB
}

func (r *voucherRepo) Create(ctx context.Context, v *models.Voucher) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

func (r *voucherRepo) GetByID(ctx context.Context, id string) (*models.Voucher, error) {
	var v models.Voucher
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *voucherRepo) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var v models.Voucher
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *voucherRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Voucher, error) {
	var vs []models.Voucher
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&vs).Error
	return vs, err
}

func (r *voucherRepo) IncrementUsed(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE vouchers SET used_count = used_count + 1, updated_at = ? WHERE id = ? AND used_count < usage_limit",
		time.Now().UTC(), id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *voucherRepo) DecrementUsed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE vouchers SET used_count = used_count - 1, updated_at = ? WHERE id = ? AND used_count > 0",
		time.Now().UTC(), id,
	).Error
}

func (r *voucherRepo) GetApplication(ctx context.Context, orderID, voucherID string) (*models.ApplyVoucher, error) {
	var a models.ApplyVoucher
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND voucher_id = ?", orderID, voucherID).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *voucherRepo) CreateApplication(ctx context.Context, a *models.ApplyVoucher) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r *voucherRepo) DeleteApplication(ctx context.Context, orderID, voucherID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("order_id = ? AND voucher_id = ?", orderID, voucherID).
		Delete(&models.ApplyVoucher{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *voucherRepo) ListForOrder(ctx context.Context, orderID string) ([]models.Voucher, error) {
	var vs []models.Voucher
	err := r.db.WithContext(ctx).
		Joins("JOIN apply_vouchers ON apply_vouchers.voucher_id = vouchers.id").
		Where("apply_vouchers.order_id = ?", orderID).
		Order("vouchers.code ASC").
		Find(&vs).Error
	return vs, err
}
