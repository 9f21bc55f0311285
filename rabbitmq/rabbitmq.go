package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-service/config"
	"shop-service/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrDelayUnsupported 服务端没有安装延迟消息插件
var ErrDelayUnsupported = errors.New("delayed message exchange is not available")

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	delayed bool
	logger  zerolog.Logger
}

func NewRabbitMQ(cfg *config.Config, logger zerolog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
		logger:  logger.With().Str("component", "rabbitmq").Logger(),
	}, nil
}

func deadLetterExchange(cfg *config.Config) string {
	return cfg.DeadLetterQueue + "_exchange"
}

func (r *RabbitMQ) SetupQueues() error {
	// 死信交换机和队列
	if err := r.Channel.ExchangeDeclare(
		deadLetterExchange(r.Cfg),
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}

	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, deadLetterExchange(r.Cfg), false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	// 订单交换机
	if err := r.Channel.ExchangeDeclare(r.Cfg.OrderExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	// 主订单队列, 带优先级和死信
	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    deadLetterExchange(r.Cfg),
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}

	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}

	r.setupDelayExchange()
	return nil
}

// setupDelayExchange 需要 rabbitmq_delayed_message_exchange 插件, 失败时关闭延迟消息
func (r *RabbitMQ) setupDelayExchange() {
	err := r.Channel.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err == nil {
		err = r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.DelayExchange, false, nil)
	}
	if err == nil {
		r.delayed = true
		return
	}

	r.logger.Warn().Err(err).Msg("delayed exchange not supported, payment checks disabled")
	// 声明失败后服务端会关闭 channel
	if r.Channel.IsClosed() {
		ch, cerr := r.Conn.Channel()
		if cerr != nil {
			r.logger.Error().Err(cerr).Msg("failed to reopen channel")
			return
		}
		r.Channel = ch
	}
}

// newMessage 事件统一用 JSON 编码
func newMessage(evt models.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode order event: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Type:         evt.Type,
		MessageId:    evt.OrderID + ":" + evt.Type + ":" + fmt.Sprint(evt.Occurred.UnixNano()),
		Body:         body,
	}, nil
}

func priorityMessage(evt models.OrderEvent, priority uint8) (amqp.Publishing, error) {
	msg, err := newMessage(evt)
	if err != nil {
		return msg, err
	}
	msg.Priority = priority
	return msg, nil
}

func delayedMessage(evt models.OrderEvent, delay time.Duration) (amqp.Publishing, error) {
	msg, err := newMessage(evt)
	if err != nil {
		return msg, err
	}
	msg.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
	return msg, nil
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, evt models.OrderEvent, priority uint8) error {
	msg, err := priorityMessage(evt, priority)
	if err != nil {
		return err
	}
	return r.Channel.PublishWithContext(ctx,
		r.Cfg.OrderExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (r *RabbitMQ) PublishDelayedEvent(ctx context.Context, evt models.OrderEvent, delay time.Duration) error {
	if !r.delayed {
		return ErrDelayUnsupported
	}
	msg, err := delayedMessage(evt, delay)
	if err != nil {
		return err
	}
	return r.Channel.PublishWithContext(ctx,
		r.Cfg.DelayExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.logger.Debug().Err(err).Msg("close channel")
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			r.logger.Debug().Err(err).Msg("close connection")
		}
	}
}
