package services

import (
	"sort"

	"shop-service/models"

	"github.com/shopspring/decimal"
)

// ShippingPolicy 固定运费, FreeThreshold > 0 时满额包邮
type ShippingPolicy struct {
	Fee           decimal.Decimal
	FreeThreshold decimal.Decimal
}

func (p ShippingPolicy) FeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if p.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.Fee
}

// Subtotal 明细金额之和
func Subtotal(details []models.OrderDetail) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range details {
		sum = sum.Add(d.LineTotal())
	}
	return sum
}

// Price 订单金额: 小计 - 优惠 + 运费
// 每张券单独按门槛和封顶计算, 优惠总额不超过小计
func Price(orderID string, details []models.OrderDetail, vouchers []models.Voucher, shippingFee decimal.Decimal) models.OrderTotal {
	subtotal := Subtotal(details)

	sorted := make([]models.Voucher, len(vouchers))
	copy(sorted, vouchers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	discount := decimal.Zero
	for i := range sorted {
		discount = discount.Add(sorted[i].DiscountFor(subtotal))
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return models.OrderTotal{
		OrderID:     orderID,
		Subtotal:    subtotal.Round(2),
		Discount:    discount.Round(2),
		ShippingFee: shippingFee.Round(2),
		Total:       subtotal.Sub(discount).Add(shippingFee).Round(2),
	}
}
