package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"shop-service/apperrors"
	"shop-service/config"
	"shop-service/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// PaymentChecker 支付超时检查
type PaymentChecker interface {
	ExpireUnpaid(ctx context.Context, orderID string) (bool, error)
}

type OrderConsumer struct {
	ch      *amqp.Channel
	cfg     *config.Config
	checker PaymentChecker
	logger  zerolog.Logger
}

func NewOrderConsumer(ch *amqp.Channel, cfg *config.Config, checker PaymentChecker, logger zerolog.Logger) *OrderConsumer {
	return &OrderConsumer{
		ch:      ch,
		cfg:     cfg,
		checker: checker,
		logger:  logger.With().Str("component", "order_consumer").Logger(),
	}
}

// Run 消费订单队列和死信队列, ctx 结束或 channel 关闭时返回
func (c *OrderConsumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := c.ch.Consume(
		c.cfg.OrderQueue,
		"shop-service", // consumer tag
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register order consumer: %w", err)
	}

	dlqMsgs, err := c.ch.Consume(
		c.cfg.DeadLetterQueue,
		"shop-service-dlq",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register dead letter consumer: %w", err)
	}

	c.logger.Info().Str("queue", c.cfg.OrderQueue).Msg("order consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("order queue channel closed")
			}
			c.processOrderMessage(ctx, msg)
		case msg, ok := <-dlqMsgs:
			if !ok {
				return fmt.Errorf("dead letter channel closed")
			}
			c.processDeadLetterMessage(msg)
		}
	}
}

func (c *OrderConsumer) processOrderMessage(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("recovered from panic in message processing")
			c.nack(msg, false)
		}
	}()

	var evt models.OrderEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil || evt.OrderID == "" {
		c.logger.Warn().Bytes("body", msg.Body).Msg("invalid message format")
		c.nack(msg, false) // 不重新入队, 进入死信队列
		return
	}

	log := c.logger.With().Str("order_id", evt.OrderID).Str("type", evt.Type).Logger()
	log.Debug().Msg("processing order event")

	switch evt.Type {
	case models.EventCreated, models.EventPaid:
		log.Info().Str("total", evt.Total).Msg("order event received")
	case models.EventStatusUpdated:
		log.Info().Str("status", string(evt.Status)).Msg("order status event received")
	case models.EventPaymentCheck:
		if err := c.handlePaymentCheck(ctx, evt.OrderID); err != nil {
			// 第一次失败重新入队, 再次失败进入死信队列
			log.Error().Err(err).Bool("redelivered", msg.Redelivered).Msg("payment check failed")
			c.nack(msg, !msg.Redelivered)
			return
		}
	default:
		log.Warn().Msg("unknown event type")
	}

	if err := msg.Ack(false); err != nil {
		log.Error().Err(err).Msg("failed to ack message")
	}
}

func (c *OrderConsumer) handlePaymentCheck(ctx context.Context, orderID string) error {
	cancelled, err := c.checker.ExpireUnpaid(ctx, orderID)
	if err != nil {
		// 订单已被删除
		if apperrors.CodeOf(err) == apperrors.NotFound {
			c.logger.Info().Str("order_id", orderID).Msg("payment check skipped, order no longer exists")
			return nil
		}
		return err
	}
	if !cancelled {
		c.logger.Debug().Str("order_id", orderID).Msg("order paid or already processed")
	}
	return nil
}

func (c *OrderConsumer) processDeadLetterMessage(msg amqp.Delivery) {
	c.logger.Warn().
		Bytes("body", msg.Body).
		Interface("x-death", msg.Headers["x-death"]).
		Msg("received dead letter")
	if err := msg.Ack(false); err != nil {
		c.logger.Error().Err(err).Msg("failed to ack dead letter")
	}
}

func (c *OrderConsumer) nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		c.logger.Error().Err(err).Msg("failed to nack message")
	}
}
