package services

import (
	"context"
	"errors"
	"time"

	"shop-service/apperrors"
	"shop-service/models"
	"shop-service/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Actor 调用方身份, 来自 token
type Actor struct {
	ID    string
	Admin bool
}

// SystemActor 内部任务(超时取消等)使用
var SystemActor = Actor{ID: "system"}

// EventPublisher 订单事件, 事务提交后发送
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority uint8) error
	PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error
}

// Deduper 回调去重, FirstSeen 第一次出现返回 true
type Deduper interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

func newID() string {
	return uuid.NewString()
}

// fail 把仓储错误转换为业务错误, 非预期错误记录日志
func fail(logger zerolog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		if ae.Code == apperrors.Unexpected {
			logger.Error().Err(err).Str("op", op).Msg("unexpected failure")
		}
		return ae
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.Wrap(apperrors.NotFound, err, "record not found")
	}
	logger.Error().Err(err).Str("op", op).Msg("unexpected failure")
	return apperrors.Wrap(apperrors.Unexpected, err, op+" failed")
}

// notFound 仅把 ErrNotFound 转换为带说明的 NotFound
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.Newf(apperrors.NotFound, format, args...)
	}
	return err
}
