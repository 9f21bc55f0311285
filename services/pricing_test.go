package services

import (
	"testing"

	"shop-service/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func line(price string, qty int) models.OrderDetail {
	return models.OrderDetail{UnitPrice: dec(price), Quantity: qty}
}

func TestPriceVoucherThresholdAndCap(t *testing.T) {
	half := models.Voucher{
		Code:          "HALF",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: dec("50"),
		MinOrder:      dec("100"),
		MaxDiscount:   dec("20"),
	}
	shipping := dec("10")

	below := Price("o1", []models.OrderDetail{line("50", 1)}, []models.Voucher{half}, shipping)
	require.Equal(t, "50.00", below.Subtotal.StringFixed(2))
	require.Equal(t, "0.00", below.Discount.StringFixed(2))
	require.Equal(t, "60.00", below.Total.StringFixed(2))

	above := Price("o1", []models.OrderDetail{line("100", 2)}, []models.Voucher{half}, shipping)
	require.Equal(t, "200.00", above.Subtotal.StringFixed(2))
	require.Equal(t, "20.00", above.Discount.StringFixed(2))
	require.Equal(t, "190.00", above.Total.StringFixed(2))
	require.Equal(t, "o1", above.OrderID)
}

func TestPriceDiscountNeverExceedsSubtotal(t *testing.T) {
	vouchers := []models.Voucher{
		{Code: "A", DiscountType: models.DiscountFixed, DiscountValue: dec("80")},
		{Code: "B", DiscountType: models.DiscountFixed, DiscountValue: dec("50")},
	}
	total := Price("o1", []models.OrderDetail{line("40", 2), line("20", 1)}, vouchers, dec("15"))

	require.Equal(t, "100.00", total.Subtotal.StringFixed(2))
	require.Equal(t, "100.00", total.Discount.StringFixed(2))
	require.Equal(t, "15.00", total.Total.StringFixed(2))
}

func TestPriceIgnoresVoucherOrder(t *testing.T) {
	a := models.Voucher{Code: "A", DiscountType: models.DiscountPercentage, DiscountValue: dec("10")}
	b := models.Voucher{Code: "B", DiscountType: models.DiscountFixed, DiscountValue: dec("3.33")}
	details := []models.OrderDetail{line("33.33", 3)}

	first := Price("o1", details, []models.Voucher{a, b}, decimal.Zero)
	second := Price("o1", details, []models.Voucher{b, a}, decimal.Zero)
	require.True(t, first.Total.Equal(second.Total))
	require.Equal(t, "13.33", first.Discount.StringFixed(2))
	require.Equal(t, "86.66", first.Total.StringFixed(2))
}

func TestPriceWithoutVouchers(t *testing.T) {
	total := Price("o1", []models.OrderDetail{line("12.50", 2)}, nil, dec("5"))
	require.Equal(t, "25.00", total.Subtotal.StringFixed(2))
	require.True(t, total.Discount.IsZero())
	require.Equal(t, "30.00", total.Total.StringFixed(2))
}

func TestShippingPolicy(t *testing.T) {
	flat := ShippingPolicy{Fee: dec("30000")}
	require.Equal(t, "30000", flat.FeeFor(dec("999999")).String())

	free := ShippingPolicy{Fee: dec("30000"), FreeThreshold: dec("500000")}
	require.Equal(t, "30000", free.FeeFor(dec("499999")).String())
	require.True(t, free.FeeFor(dec("500000")).IsZero())
}
