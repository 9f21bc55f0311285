package services

import (
	"context"
	"encoding/json"
	"strings"

	"shop-service/apperrors"
	"shop-service/models"
	"shop-service/payment"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentService 处理支付平台回调
type PaymentService struct {
	orders  *OrderService
	deduper Deduper
	key     []byte
	logger  zerolog.Logger
}

func NewPaymentService(orders *OrderService, deduper Deduper, webhookKey string, logger zerolog.Logger) *PaymentService {
	if orders == nil || deduper == nil {
		panic("payment service missing required dependency")
	}
	return &PaymentService{
		orders:  orders,
		deduper: deduper,
		key:     []byte(webhookKey),
		logger:  logger.With().Str("component", "payment_service").Logger(),
	}
}

// HandleWebhook 校验签名后确认支付; 重复的事件以及非支付成功的事件返回 nil, nil
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*models.Order, error) {
	if !payment.Verify(s.key, body, signature) {
		return nil, apperrors.New(apperrors.Forbidden, "invalid webhook signature")
	}

	var payload payment.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.Wrap(apperrors.ValidationError, err, "malformed webhook payload")
	}
	if payload.EventID == "" || payload.OrderID == "" {
		return nil, apperrors.New(apperrors.ValidationError, "event_id and order_id are required")
	}
	if !strings.EqualFold(payload.Status, payment.StatusPaid) {
		s.logger.Info().Str("event_id", payload.EventID).Str("status", payload.Status).Msg("ignoring non-paid webhook")
		return nil, nil
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ValidationError, err, "amount must be a decimal string")
	}

	first, err := s.deduper.FirstSeen(ctx, payload.EventID)
	if err != nil {
		return nil, fail(s.logger, "webhook dedup", err)
	}
	if !first {
		s.logger.Info().Str("event_id", payload.EventID).Msg("duplicate webhook delivery")
		return nil, nil
	}

	order, err := s.orders.ConfirmPayment(ctx, payload.OrderID, amount)
	if err != nil {
		// 允许支付平台重试
		if ferr := s.deduper.Forget(ctx, payload.EventID); ferr != nil {
			s.logger.Warn().Err(ferr).Str("event_id", payload.EventID).Msg("failed to release webhook dedup key")
		}
		return nil, err
	}
	return order, nil
}
