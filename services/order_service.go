package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"shop-service/apperrors"
	"shop-service/models"
	"shop-service/payment"
	"shop-service/repositories"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// 大额订单事件使用高优先级
var highValueOrderTotal = decimal.NewFromInt(1000)

type OrderOptions struct {
	Shipping          ShippingPolicy
	PaymentCheckDelay time.Duration
}

// OrderService 下单、改单、状态流转以及金额计算
type OrderService struct {
	store     repositories.Store
	stock     *ProductStock
	ledger    *VoucherLedger
	publisher EventPublisher
	gateway   payment.Gateway
	opts      OrderOptions
	logger    zerolog.Logger
	now       func() time.Time
}

func NewOrderService(
	store repositories.Store,
	stock *ProductStock,
	ledger *VoucherLedger,
	publisher EventPublisher,
	gateway payment.Gateway,
	opts OrderOptions,
	logger zerolog.Logger,
) *OrderService {
	if store == nil || stock == nil || ledger == nil {
		panic("order service missing required dependency")
	}
	if opts.PaymentCheckDelay <= 0 {
		opts.PaymentCheckDelay = 15 * time.Minute
	}
	return &OrderService{
		store:     store,
		stock:     stock,
		ledger:    ledger,
		publisher: publisher,
		gateway:   gateway,
		opts:      opts,
		logger:    logger.With().Str("component", "order_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// mergeItems 合并重复商品, 按 product_id 排序, 保证加锁顺序一致
func mergeItems(items []models.LineItem, allowZero bool) ([]models.LineItem, error) {
	qty := make(map[string]int)
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, apperrors.New(apperrors.ValidationError, "product_id is required")
		}
		if it.Quantity < 0 || (!allowZero && it.Quantity == 0) {
			return nil, apperrors.Newf(apperrors.ValidationError, "invalid quantity %d for product %s", it.Quantity, id)
		}
		qty[id] += it.Quantity
	}
	merged := make([]models.LineItem, 0, len(qty))
	for id, q := range qty {
		merged = append(merged, models.LineItem{ProductID: id, Quantity: q})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

func normalizeCodes(codes []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func (s *OrderService) CreateOrder(ctx context.Context, customerID string, req models.CreateOrderRequest) (*models.Order, error) {
	if customerID == "" {
		return nil, apperrors.New(apperrors.Unauthenticated, "customer identity is required")
	}
	if len(req.Items) == 0 {
		return nil, apperrors.New(apperrors.ValidationError, "order must contain at least one item")
	}
	items, err := mergeItems(req.Items, false)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Shipping.Name) == "" || strings.TrimSpace(req.Shipping.Phone) == "" ||
		strings.TrimSpace(req.Shipping.Address) == "" {
		return nil, apperrors.New(apperrors.ValidationError, "shipping name, phone and address are required")
	}
	codes := normalizeCodes(req.VoucherCodes)

	now := s.now()
	order := &models.Order{
		ID:              newID(),
		CustomerID:      customerID,
		ShippingName:    req.Shipping.Name,
		ShippingPhone:   req.Shipping.Phone,
		ShippingAddress: req.Shipping.Address,
		Note:            req.Shipping.Note,
		Status:          models.StatusPending,
		Success:         false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.store.ExecTx(ctx, func(tx repositories.Store) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, it := range items {
			p, err := s.stock.Reserve(ctx, tx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
			if err := tx.Orders().CreateDetail(ctx, &models.OrderDetail{
				ID:          newID(),
				OrderID:     order.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				UnitPrice:   p.Price,
			}); err != nil {
				return err
			}
		}

		for _, code := range codes {
			v, err := tx.Vouchers().GetByCode(ctx, code)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return apperrors.Newf(apperrors.VoucherInvalid, "voucher %s not found", code)
				}
				return err
			}
			// 未达到门槛的券不应用, 下单照常进行
			if _, err := s.ledger.applyTx(ctx, tx, order, v.ID, subtotal); err != nil {
				return err
			}
		}

		if _, err := s.recalculate(ctx, tx, order, true); err != nil {
			return err
		}
		return tx.Orders().AppendLog(ctx, &models.OrderLog{
			ID:        newID(),
			OrderID:   order.ID,
			NewStatus: models.StatusPending,
			ActorID:   customerID,
			Note:      "order created",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fail(s.logger, "create order", err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("customer_id", customerID).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created")

	priority := uint8(5)
	if order.Total.GreaterThan(highValueOrderTotal) {
		priority = 9
	}
	s.publish(ctx, order, models.EventCreated, priority)
	s.schedulePaymentCheck(ctx, order)
	s.attachPaymentLink(ctx, order)

	return order, nil
}

// recalculate 重新计算并写回订单金额, refreshShipping 时按当前小计重算运费
func (s *OrderService) recalculate(ctx context.Context, tx repositories.Store, order *models.Order, refreshShipping bool) (models.OrderTotal, error) {
	details, err := tx.Orders().ListDetails(ctx, order.ID)
	if err != nil {
		return models.OrderTotal{}, err
	}
	vouchers, err := tx.Vouchers().ListForOrder(ctx, order.ID)
	if err != nil {
		return models.OrderTotal{}, err
	}

	shipping := order.ShippingFee
	if refreshShipping {
		shipping = s.opts.Shipping.FeeFor(Subtotal(details))
	}
	total := Price(order.ID, details, vouchers, shipping)

	upd := models.OrderUpdate{
		Subtotal:    &total.Subtotal,
		Discount:    &total.Discount,
		ShippingFee: &total.ShippingFee,
		Total:       &total.Total,
	}
	if err := tx.Orders().Update(ctx, order.ID, upd); err != nil {
		return models.OrderTotal{}, err
	}
	upd.Apply(order)
	order.Details = details
	return total, nil
}

// CalculateTotal 只读, 相同数据多次调用结果一致
func (s *OrderService) CalculateTotal(ctx context.Context, orderID string, actor Actor) (*models.OrderTotal, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, fail(s.logger, "calculate total", notFound(err, "order %s not found", orderID))
	}
	if err := authorize(order, actor); err != nil {
		return nil, err
	}
	details, err := s.store.Orders().ListDetails(ctx, orderID)
	if err != nil {
		return nil, fail(s.logger, "calculate total", err)
	}
	vouchers, err := s.store.Vouchers().ListForOrder(ctx, orderID)
	if err != nil {
		return nil, fail(s.logger, "calculate total", err)
	}
	total := Price(orderID, details, vouchers, order.ShippingFee)
	return &total, nil
}

// UpdateOrder 客户只能修改 pending 订单; 管理员可修改任何未结束的订单
// Items 中数量为 0 表示删除该商品, 未列出的商品保持不变
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, actor Actor, req models.UpdateOrderRequest) (*models.Order, error) {
	items, err := mergeItems(req.Items, true)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.store.ExecTx(ctx, func(tx repositories.Store) error {
		order, err = tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if err := authorize(order, actor); err != nil {
			return err
		}
		if actor.Admin {
			if order.Status.Terminal() {
				return apperrors.Newf(apperrors.InvalidTransition, "order in status %s can no longer be modified", order.Status)
			}
		} else if order.Status != models.StatusPending {
			return apperrors.Newf(apperrors.InvalidTransition, "order can only be modified while pending, current status is %s", order.Status)
		}

		if len(items) > 0 {
			if err := s.applyLineChanges(ctx, tx, order.ID, items); err != nil {
				return err
			}
		}

		shipping := models.OrderUpdate{
			ShippingName:    trimmed(req.ShippingName),
			ShippingPhone:   trimmed(req.ShippingPhone),
			ShippingAddress: trimmed(req.ShippingAddress),
			Note:            req.Note,
		}
		if err := tx.Orders().Update(ctx, order.ID, shipping); err != nil {
			return err
		}
		shipping.Apply(order)

		_, err := s.recalculate(ctx, tx, order, true)
		return err
	})
	if err != nil {
		return nil, fail(s.logger, "update order", err)
	}
	return order, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// applyLineChanges 按差值预留或归还库存
func (s *OrderService) applyLineChanges(ctx context.Context, tx repositories.Store, orderID string, items []models.LineItem) error {
	details, err := tx.Orders().ListDetails(ctx, orderID)
	if err != nil {
		return err
	}
	current := make(map[string]models.OrderDetail, len(details))
	for _, d := range details {
		current[d.ProductID] = d
	}
	remaining := len(details)

	for _, it := range items {
		old, exists := current[it.ProductID]
		switch {
		case exists && it.Quantity == 0:
			if err := s.stock.Restore(ctx, tx, it.ProductID, old.Quantity); err != nil {
				return err
			}
			if err := tx.Orders().DeleteDetail(ctx, old.ID); err != nil {
				return err
			}
			remaining--
		case exists && it.Quantity != old.Quantity:
			if err := s.stock.Adjust(ctx, tx, it.ProductID, it.Quantity-old.Quantity); err != nil {
				return err
			}
			if err := tx.Orders().UpdateDetailQuantity(ctx, old.ID, it.Quantity); err != nil {
				return err
			}
		case !exists && it.Quantity > 0:
			p, err := s.stock.Reserve(ctx, tx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			if err := tx.Orders().CreateDetail(ctx, &models.OrderDetail{
				ID:          newID(),
				OrderID:     orderID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				UnitPrice:   p.Price,
			}); err != nil {
				return err
			}
			remaining++
		}
	}

	if remaining == 0 {
		return apperrors.New(apperrors.ValidationError, "order must contain at least one item")
	}
	return nil
}

// authorize 非管理员只能操作自己的订单
func authorize(order *models.Order, actor Actor) error {
	if actor.Admin {
		return nil
	}
	if actor.ID == "" || order.CustomerID != actor.ID {
		return apperrors.New(apperrors.Forbidden, "order does not belong to the caller")
	}
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string, actor Actor) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, fail(s.logger, "get order", notFound(err, "order %s not found", orderID))
	}
	if err := authorize(order, actor); err != nil {
		return nil, err
	}
	details, err := s.store.Orders().ListDetails(ctx, orderID)
	if err != nil {
		return nil, fail(s.logger, "get order", err)
	}
	order.Details = details
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	orders, err := s.store.Orders().ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fail(s.logger, "list orders", err)
	}
	return orders, nil
}

func (s *OrderService) OrderLogs(ctx context.Context, orderID string, actor Actor) ([]models.OrderLog, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, fail(s.logger, "order logs", notFound(err, "order %s not found", orderID))
	}
	if err := authorize(order, actor); err != nil {
		return nil, err
	}
	logs, err := s.store.Orders().ListLogs(ctx, orderID)
	if err != nil {
		return nil, fail(s.logger, "order logs", err)
	}
	return logs, nil
}

// ApplyVoucher 客户在 pending 阶段追加优惠券, 并重算金额
func (s *OrderService) ApplyVoucher(ctx context.Context, orderID, code string, actor Actor) (*models.OrderTotal, error) {
	return s.changeVoucher(ctx, "apply voucher", orderID, code, actor, func(tx repositories.Store, order *models.Order, v *models.Voucher) error {
		details, err := tx.Orders().ListDetails(ctx, order.ID)
		if err != nil {
			return err
		}
		subtotal := Subtotal(details)
		applied, err := s.ledger.applyTx(ctx, tx, order, v.ID, subtotal)
		if err != nil {
			return err
		}
		if !applied {
			return apperrors.Newf(apperrors.VoucherInvalid, "voucher %s requires a minimum order of %s, subtotal is %s",
				v.Code, v.MinOrder.StringFixed(2), subtotal.StringFixed(2))
		}
		return nil
	})
}

func (s *OrderService) RemoveVoucher(ctx context.Context, orderID, code string, actor Actor) (*models.OrderTotal, error) {
	return s.changeVoucher(ctx, "remove voucher", orderID, code, actor, func(tx repositories.Store, order *models.Order, v *models.Voucher) error {
		return s.ledger.removeTx(ctx, tx, order.ID, v.ID)
	})
}

func (s *OrderService) changeVoucher(
	ctx context.Context,
	op, orderID, code string,
	actor Actor,
	change func(tx repositories.Store, order *models.Order, v *models.Voucher) error,
) (*models.OrderTotal, error) {
	var total models.OrderTotal
	err := s.store.ExecTx(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if err := authorize(order, actor); err != nil {
			return err
		}
		if order.Status != models.StatusPending && !(actor.Admin && !order.Status.Terminal()) {
			return apperrors.Newf(apperrors.InvalidTransition, "vouchers cannot be changed on a %s order", order.Status)
		}

		v, err := tx.Vouchers().GetByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.Newf(apperrors.VoucherInvalid, "voucher %s not found", code)
			}
			return err
		}
		if err := change(tx, order, v); err != nil {
			return err
		}
		total, err = s.recalculate(ctx, tx, order, false)
		return err
	})
	if err != nil {
		return nil, fail(s.logger, op, err)
	}
	return &total, nil
}

func (s *OrderService) publish(ctx context.Context, order *models.Order, eventType string, priority uint8) {
	if s.publisher == nil {
		return
	}
	evt := models.OrderEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Type:       eventType,
		Status:     order.Status,
		Total:      order.Total.StringFixed(2),
		Occurred:   s.now(),
	}
	if err := s.publisher.PublishOrderEvent(ctx, evt, priority); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Str("type", eventType).Msg("failed to publish order event")
	}
}

// schedulePaymentCheck 超时未支付的订单由消费者自动取消
func (s *OrderService) schedulePaymentCheck(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}
	evt := models.OrderEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Type:       models.EventPaymentCheck,
		Status:     order.Status,
		Total:      order.Total.StringFixed(2),
		Occurred:   s.now(),
	}
	if err := s.publisher.PublishDelayedEvent(ctx, evt, s.opts.PaymentCheckDelay); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to schedule payment check")
	}
}

// attachPaymentLink 失败不影响下单
func (s *OrderService) attachPaymentLink(ctx context.Context, order *models.Order) {
	if s.gateway == nil {
		return
	}
	link, err := s.gateway.CreatePaymentLink(ctx, order)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to create payment link")
		return
	}
	if err := s.store.Orders().Update(ctx, order.ID, models.OrderUpdate{PaymentLink: &link}); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to save payment link")
		return
	}
	order.PaymentLink = link
}
