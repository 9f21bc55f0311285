package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shop-service/apperrors"
	"shop-service/mocks"
	"shop-service/payment"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const webhookKey = "whsec_test"

func signedPayload(t *testing.T, p payment.WebhookPayload) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return body, payment.Sign([]byte(webhookKey), body)
}

func newPaymentFixture(t *testing.T) (*fixture, *mocks.MockDeduper, *PaymentService) {
	t.Helper()
	f := newFixture(t, nil, nil)
	deduper := mocks.NewMockDeduper(gomock.NewController(t))
	return f, deduper, NewPaymentService(f.orders, deduper, webhookKey, zerolog.Nop())
}

func TestWebhookConfirmsPayment(t *testing.T) {
	f, deduper, svc := newPaymentFixture(t)
	f.addProduct("p1", "10", 10)
	order := f.placeOrder(t, "c1", nil, item("p1", 1))

	body, sig := signedPayload(t, payment.WebhookPayload{EventID: "evt-1", OrderID: order.ID, Status: "paid", Amount: "20.00"})
	deduper.EXPECT().FirstSeen(gomock.Any(), "evt-1").Return(true, nil)

	paid, err := svc.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.NotNil(t, paid)
	require.True(t, paid.Success)

	stored, _ := f.store.order(order.ID)
	require.True(t, stored.Success)
	require.NotNil(t, stored.PaidAt)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f, _, svc := newPaymentFixture(t)
	f.addProduct("p1", "10", 10)
	order := f.placeOrder(t, "c1", nil, item("p1", 1))
	body, _ := signedPayload(t, payment.WebhookPayload{EventID: "evt-1", OrderID: order.ID, Status: payment.StatusPaid})

	_, err := svc.HandleWebhook(context.Background(), body, payment.Sign([]byte("other"), body))
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.HandleWebhook(context.Background(), body, "")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	stored, _ := f.store.order(order.ID)
	require.False(t, stored.Success)
}

func TestWebhookWithoutKeyRejectsEverything(t *testing.T) {
	f := newFixture(t, nil, nil)
	deduper := mocks.NewMockDeduper(gomock.NewController(t))
	svc := NewPaymentService(f.orders, deduper, "", zerolog.Nop())

	body := []byte(`{"event_id":"evt-1","order_id":"o1","status":"PAID"}`)
	_, err := svc.HandleWebhook(context.Background(), body, payment.Sign(nil, body))
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestWebhookIgnoresDuplicatesAndOtherStatuses(t *testing.T) {
	f, deduper, svc := newPaymentFixture(t)
	f.addProduct("p1", "10", 10)
	order := f.placeOrder(t, "c1", nil, item("p1", 1))
	ctx := context.Background()

	body, sig := signedPayload(t, payment.WebhookPayload{EventID: "evt-2", OrderID: order.ID, Status: "FAILED"})
	got, err := svc.HandleWebhook(ctx, body, sig)
	require.NoError(t, err)
	require.Nil(t, got)

	body, sig = signedPayload(t, payment.WebhookPayload{EventID: "evt-3", OrderID: order.ID, Status: payment.StatusPaid, Amount: "20.00"})
	deduper.EXPECT().FirstSeen(gomock.Any(), "evt-3").Return(false, nil)
	got, err = svc.HandleWebhook(ctx, body, sig)
	require.NoError(t, err)
	require.Nil(t, got)

	stored, _ := f.store.order(order.ID)
	require.False(t, stored.Success)
}

func TestWebhookReleasesKeyWhenConfirmationFails(t *testing.T) {
	_, deduper, svc := newPaymentFixture(t)
	ctx := context.Background()

	body, sig := signedPayload(t, payment.WebhookPayload{EventID: "evt-4", OrderID: "missing", Status: payment.StatusPaid, Amount: "20.00"})
	gomock.InOrder(
		deduper.EXPECT().FirstSeen(gomock.Any(), "evt-4").Return(true, nil),
		deduper.EXPECT().Forget(gomock.Any(), "evt-4").Return(nil),
	)
	_, err := svc.HandleWebhook(ctx, body, sig)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWebhookValidation(t *testing.T) {
	_, deduper, svc := newPaymentFixture(t)
	ctx := context.Background()

	body := []byte("not json")
	_, err := svc.HandleWebhook(ctx, body, payment.Sign([]byte(webhookKey), body))
	require.ErrorIs(t, err, apperrors.ErrValidation)

	body, sig := signedPayload(t, payment.WebhookPayload{Status: payment.StatusPaid})
	_, err = svc.HandleWebhook(ctx, body, sig)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	// 支付成功的事件必须带金额
	for _, amount := range []string{"", "twenty"} {
		body, sig = signedPayload(t, payment.WebhookPayload{EventID: "evt-6", OrderID: "o1", Status: payment.StatusPaid, Amount: amount})
		_, err = svc.HandleWebhook(ctx, body, sig)
		require.ErrorIs(t, err, apperrors.ErrValidation, amount)
	}

	body, sig = signedPayload(t, payment.WebhookPayload{EventID: "evt-5", OrderID: "o1", Status: payment.StatusPaid, Amount: "20.00"})
	deduper.EXPECT().FirstSeen(gomock.Any(), "evt-5").Return(false, errors.New("redis unavailable"))
	_, err = svc.HandleWebhook(ctx, body, sig)
	require.ErrorIs(t, err, apperrors.ErrUnexpected)
}

func TestWebhookRejectsAmountMismatch(t *testing.T) {
	f, deduper, svc := newPaymentFixture(t)
	f.addProduct("p1", "10", 10)
	order := f.placeOrder(t, "c1", nil, item("p1", 1))
	ctx := context.Background()

	mismatched := counterValue(t, "shop_service_payments_total", "result", "amount_mismatch")
	body, sig := signedPayload(t, payment.WebhookPayload{EventID: "evt-7", OrderID: order.ID, Status: payment.StatusPaid, Amount: "1.00"})
	gomock.InOrder(
		deduper.EXPECT().FirstSeen(gomock.Any(), "evt-7").Return(true, nil),
		deduper.EXPECT().Forget(gomock.Any(), "evt-7").Return(nil),
	)
	_, err := svc.HandleWebhook(ctx, body, sig)
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Equal(t, mismatched+1, counterValue(t, "shop_service_payments_total", "result", "amount_mismatch"))

	stored, _ := f.store.order(order.ID)
	require.False(t, stored.Success)
	require.Nil(t, stored.PaidAt)
}
