package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Voucher struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Code          string          `gorm:"uniqueIndex;not null;type:varchar(64)" json:"code"`
	DiscountType  DiscountType    `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount_value"`
	MinOrder      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"min_order"`
	MaxDiscount   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"max_discount"` // 0 不封顶
	StartAt       time.Time       `json:"start_at"`
	EndAt         time.Time       `json:"end_at"`
	UsageLimit    int             `gorm:"not null;default:1" json:"usage_limit"`
	UsedCount     int             `gorm:"not null;default:0" json:"used_count"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	Root          bool            `gorm:"not null;default:false" json:"root"`
	PointCost     int             `gorm:"not null;default:0" json:"point_cost"`
	RootID        string          `gorm:"type:varchar(36);index" json:"root_id,omitempty"`
	OwnerID       string          `gorm:"type:varchar(36);index" json:"owner_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InWindow 是否在有效期内, 两端都包含
func (v *Voucher) InWindow(now time.Time) bool {
	return !now.Before(v.StartAt) && !now.After(v.EndAt)
}

func (v *Voucher) Exhausted() bool {
	return v.UsedCount >= v.UsageLimit
}

// DiscountFor 按小计计算单张券的优惠, 未达门槛为 0
func (v *Voucher) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(v.MinOrder) {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch v.DiscountType {
	case DiscountPercentage:
		d = subtotal.Mul(v.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		d = v.DiscountValue
	default:
		return decimal.Zero
	}
	if v.MaxDiscount.IsPositive() && d.GreaterThan(v.MaxDiscount) {
		d = v.MaxDiscount
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ApplyVoucher (order_id, voucher_id) 唯一
type ApplyVoucher struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID   string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_order_voucher" json:"order_id"`
	VoucherID string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_order_voucher" json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RedeemRequest struct {
	VoucherID string `json:"voucher_id" binding:"required"`
}

type ApplyVoucherRequest struct {
	Code string `json:"code" binding:"required"`
}
