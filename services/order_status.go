package services

import (
	"context"

	"shop-service/apperrors"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/repositories"

	"github.com/shopspring/decimal"
)

// UpdateStatus 客户只能取消自己的订单, 确认/发货/完成由管理员操作;
// 管理员可直接设置任意状态, 副作用按目标状态执行
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, target models.OrderStatus, actor Actor) (*models.Order, error) {
	if !target.Valid() {
		return nil, apperrors.Newf(apperrors.ValidationError, "unknown order status %q", target)
	}

	var order *models.Order
	changed := false
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if err := authorize(order, actor); err != nil {
			return err
		}
		if !actor.Admin {
			if target != models.StatusCancelled {
				return apperrors.Newf(apperrors.Forbidden, "only administrators can move orders to %s", target)
			}
			if !models.CanTransition(order.Status, target) {
				return apperrors.Newf(apperrors.InvalidTransition, "cannot change order status from %s to %s", order.Status, target)
			}
		}
		if order.Status == target {
			return nil
		}
		changed = true
		return s.transition(ctx, tx, order, target, actor, "")
	})
	if err != nil {
		return nil, fail(s.logger, "update order status", err)
	}

	if changed {
		s.afterTransition(ctx, order)
	}
	return order, nil
}

// CancelOrder 客户取消自己的 pending / confirmed 订单
func (s *OrderService) CancelOrder(ctx context.Context, orderID, customerID string) (*models.Order, error) {
	var order *models.Order
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if customerID == "" || order.CustomerID != customerID {
			return apperrors.New(apperrors.Forbidden, "order does not belong to the caller")
		}
		if !models.CanTransition(order.Status, models.StatusCancelled) {
			return apperrors.Newf(apperrors.InvalidTransition, "order in status %s cannot be cancelled", order.Status)
		}
		return s.transition(ctx, tx, order, models.StatusCancelled, Actor{ID: customerID}, "cancelled by customer")
	})
	if err != nil {
		return nil, fail(s.logger, "cancel order", err)
	}

	s.afterTransition(ctx, order)
	return order, nil
}

// ExpireUnpaid 支付超时检查, 订单仍为 pending 且未支付时取消, 返回是否取消
func (s *OrderService) ExpireUnpaid(ctx context.Context, orderID string) (bool, error) {
	var order *models.Order
	expired := false
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if order.Status != models.StatusPending || order.Success {
			return nil
		}
		expired = true
		return s.transition(ctx, tx, order, models.StatusCancelled, SystemActor, "payment timeout")
	})
	if err != nil {
		return false, fail(s.logger, "expire unpaid order", err)
	}

	if expired {
		middlewares.RecordOrderExpired()
		s.logger.Info().Str("order_id", orderID).Msg("auto-cancelled order due to non-payment")
		s.afterTransition(ctx, order)
	}
	return expired, nil
}

// ConfirmPayment 支付回调, 幂等; 金额必须与订单总额一致
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string, amount decimal.Decimal) (*models.Order, error) {
	var order *models.Order
	paid := false
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if order.Success {
			return nil
		}
		if !amount.Equal(order.Total) {
			s.logger.Warn().
				Str("order_id", orderID).
				Str("amount", amount.StringFixed(2)).
				Str("total", order.Total.StringFixed(2)).
				Msg("payment amount does not match order total")
			middlewares.RecordPayment(middlewares.PaymentAmountMismatch)
			return apperrors.Newf(apperrors.ValidationError,
				"payment amount %s does not match order total %s", amount.StringFixed(2), order.Total.StringFixed(2))
		}
		if order.Status == models.StatusCancelled {
			s.logger.Warn().Str("order_id", orderID).Msg("payment received for cancelled order")
		}

		now := s.now()
		success := true
		upd := models.OrderUpdate{Success: &success, PaidAt: &now}
		if err := tx.Orders().Update(ctx, order.ID, upd); err != nil {
			return err
		}
		upd.Apply(order)
		paid = true
		return tx.Orders().AppendLog(ctx, &models.OrderLog{
			ID:        newID(),
			OrderID:   order.ID,
			OldStatus: order.Status,
			NewStatus: order.Status,
			ActorID:   SystemActor.ID,
			Note:      "payment confirmed",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fail(s.logger, "confirm payment", err)
	}

	if paid {
		middlewares.RecordPayment(middlewares.PaymentConfirmed)
		s.publish(ctx, order, models.EventPaid, 5)
	}
	return order, nil
}

// DeleteOrder 管理员删除订单, 归还仍被占用的库存并释放优惠券
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string, actor Actor) error {
	if !actor.Admin {
		return apperrors.New(apperrors.Forbidden, "only administrators can delete orders")
	}
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		details, err := tx.Orders().ListDetails(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.StatusCancelled {
			for _, d := range details {
				if err := s.stock.Restore(ctx, tx, d.ProductID, d.Quantity); err != nil {
					return err
				}
			}
		}
		if err := s.ledger.releaseAllTx(ctx, tx, orderID); err != nil {
			return err
		}
		return tx.Orders().Delete(ctx, orderID)
	})
	if err != nil {
		return fail(s.logger, "delete order", err)
	}
	s.logger.Info().Str("order_id", orderID).Str("actor_id", actor.ID).Msg("order deleted")
	return nil
}

// transition 写状态并执行副作用:
//   - 进入 cancelled: 归还库存, 释放优惠券; 金额保留为下单时的结果
//   - 离开 cancelled(仅管理员): 重新预留库存, 按当前明细重算金额(券不恢复)
//   - 第一次进入 completed: 记销量, success = true
func (s *OrderService) transition(ctx context.Context, tx repositories.Store, order *models.Order, target models.OrderStatus, actor Actor, note string) error {
	from := order.Status
	details, err := tx.Orders().ListDetails(ctx, order.ID)
	if err != nil {
		return err
	}

	switch {
	case target == models.StatusCancelled && from != models.StatusCancelled:
		for _, d := range details {
			if err := s.stock.Restore(ctx, tx, d.ProductID, d.Quantity); err != nil {
				return err
			}
		}
		if err := s.ledger.releaseAllTx(ctx, tx, order.ID); err != nil {
			return err
		}
	case from == models.StatusCancelled && target != models.StatusCancelled:
		for _, d := range details {
			if _, err := s.stock.Reserve(ctx, tx, d.ProductID, d.Quantity); err != nil {
				return err
			}
		}
		if _, err := s.recalculate(ctx, tx, order, false); err != nil {
			return err
		}
	}

	upd := models.OrderUpdate{Status: &target}
	if target == models.StatusCompleted && !order.SoldRecorded {
		for _, d := range details {
			if err := s.stock.MarkSold(ctx, tx, d.ProductID, d.Quantity); err != nil {
				return err
			}
		}
		yes := true
		upd.SoldRecorded = &yes
		upd.Success = &yes
	}

	if err := tx.Orders().Update(ctx, order.ID, upd); err != nil {
		return err
	}
	upd.Apply(order)
	order.Details = details

	return tx.Orders().AppendLog(ctx, &models.OrderLog{
		ID:        newID(),
		OrderID:   order.ID,
		OldStatus: from,
		NewStatus: target,
		ActorID:   actor.ID,
		Admin:     actor.Admin,
		Note:      note,
		CreatedAt: s.now(),
	})
}

func (s *OrderService) afterTransition(ctx context.Context, order *models.Order) {
	s.logger.Info().
		Str("order_id", order.ID).
		Str("status", string(order.Status)).
		Msg("order status changed")

	priority := uint8(5)
	if order.Status == models.StatusCancelled {
		priority = 8
	}
	s.publish(ctx, order, models.EventStatusUpdated, priority)
}
