package services

import (
	"context"
	"testing"
	"time"

	"shop-service/models"
	"shop-service/payment"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fixture struct {
	store    *memStore
	stock    *ProductStock
	ledger   *VoucherLedger
	orders   *OrderService
	reviews  *ReviewService
	shipping decimal.Decimal
}

func newFixture(t *testing.T, publisher EventPublisher, gateway payment.Gateway) *fixture {
	t.Helper()
	store := newMemStore()
	logger := zerolog.Nop()
	shipping := decimal.NewFromInt(10)

	stock := NewProductStock()
	ledger := NewVoucherLedger(store, logger)
	ledger.now = fixedClock
	orders := NewOrderService(store, stock, ledger, publisher, gateway, OrderOptions{
		Shipping:          ShippingPolicy{Fee: shipping},
		PaymentCheckDelay: time.Minute,
	}, logger)
	orders.now = fixedClock
	reviews := NewReviewService(store, logger)
	reviews.now = fixedClock

	return &fixture{
		store:    store,
		stock:    stock,
		ledger:   ledger,
		orders:   orders,
		reviews:  reviews,
		shipping: shipping,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) addProduct(id, price string, stock int) {
	f.store.seedProduct(models.Product{
		ID:     id,
		Name:   "product " + id,
		Price:  dec(price),
		Stock:  stock,
		Active: true,
	})
}

func (f *fixture) addVoucher(id, code string, typ models.DiscountType, value string, limit int) {
	f.store.seedVoucher(models.Voucher{
		ID:            id,
		Code:          code,
		DiscountType:  typ,
		DiscountValue: dec(value),
		StartAt:       testNow.Add(-24 * time.Hour),
		EndAt:         testNow.Add(24 * time.Hour),
		UsageLimit:    limit,
		Active:        true,
	})
}

func orderRequest(codes []string, items ...models.LineItem) models.CreateOrderRequest {
	return models.CreateOrderRequest{
		Shipping: models.ShippingInfo{
			Name:    "Nguyen Van A",
			Phone:   "0900000000",
			Address: "1 Le Loi, District 1",
		},
		Items:        items,
		VoucherCodes: codes,
	}
}

func item(productID string, qty int) models.LineItem {
	return models.LineItem{ProductID: productID, Quantity: qty}
}

// placeOrder 下单并断言成功
func (f *fixture) placeOrder(t *testing.T, customerID string, codes []string, items ...models.LineItem) *models.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), customerID, orderRequest(codes, items...))
	require.NoError(t, err)
	return order
}

var admin = Actor{ID: "admin-1", Admin: true}
