package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"shop-service/apperrors"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// VoucherLedger 优惠券的校验、使用次数以及积分兑换
type VoucherLedger struct {
	store  repositories.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewVoucherLedger(store repositories.Store, logger zerolog.Logger) *VoucherLedger {
	if store == nil {
		panic("voucher ledger missing required dependency store")
	}
	return &VoucherLedger{
		store:  store,
		logger: logger.With().Str("component", "voucher_ledger").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *VoucherLedger) check(v *models.Voucher) error {
	switch {
	case !v.Active:
		return apperrors.Newf(apperrors.VoucherInvalid, "voucher %s is inactive", v.Code)
	case v.Root:
		return apperrors.Newf(apperrors.VoucherInvalid, "voucher %s can only be redeemed with points", v.Code)
	case !v.InWindow(l.now()):
		return apperrors.Newf(apperrors.VoucherInvalid, "voucher %s is outside its validity period", v.Code)
	case v.Exhausted():
		return apperrors.Newf(apperrors.VoucherInvalid, "voucher %s has reached its usage limit", v.Code)
	}
	return nil
}

// ValidateForApplication 券不存在、停用、过期、用完或为模板券时返回 VoucherInvalid
func (l *VoucherLedger) ValidateForApplication(ctx context.Context, voucherID string) (*models.Voucher, error) {
	v, err := l.validateTx(ctx, l.store, voucherID)
	if err != nil {
		return nil, fail(l.logger, "validate voucher", err)
	}
	return v, nil
}

// ValidateCode 按券码校验
func (l *VoucherLedger) ValidateCode(ctx context.Context, code string) (*models.Voucher, error) {
	v, err := l.store.Vouchers().GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.VoucherInvalid, "voucher %s not found", code)
		}
		return nil, fail(l.logger, "validate voucher", err)
	}
	if err := l.check(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (l *VoucherLedger) validateTx(ctx context.Context, tx repositories.Store, voucherID string) (*models.Voucher, error) {
	v, err := tx.Vouchers().GetByID(ctx, voucherID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.VoucherInvalid, "voucher %s not found", voucherID)
		}
		return nil, err
	}
	if err := l.check(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ApplyToOrder 幂等, 同一张券重复应用不会重复计数; 订单小计未达到门槛时不应用
func (l *VoucherLedger) ApplyToOrder(ctx context.Context, orderID, voucherID string) error {
	err := l.store.ExecTx(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		details, err := tx.Orders().ListDetails(ctx, orderID)
		if err != nil {
			return err
		}
		_, err = l.applyTx(ctx, tx, order, voucherID, Subtotal(details))
		return err
	})
	return fail(l.logger, "apply voucher", err)
}

// applyTx 返回券是否挂到了订单上; 低于 min_order 的券不挂, 也不占用次数
func (l *VoucherLedger) applyTx(ctx context.Context, tx repositories.Store, order *models.Order, voucherID string, subtotal decimal.Decimal) (bool, error) {
	if _, err := tx.Vouchers().GetApplication(ctx, order.ID, voucherID); err == nil {
		return true, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return false, err
	}

	v, err := l.validateTx(ctx, tx, voucherID)
	if err != nil {
		return false, err
	}
	if v.OwnerID != "" && v.OwnerID != order.CustomerID {
		return false, apperrors.Newf(apperrors.VoucherInvalid, "voucher %s belongs to another customer", v.Code)
	}
	if v.MinOrder.IsPositive() && subtotal.LessThan(v.MinOrder) {
		l.logger.Debug().
			Str("order_id", order.ID).
			Str("voucher_code", v.Code).
			Str("subtotal", subtotal.StringFixed(2)).
			Msg("voucher below minimum order, not applied")
		middlewares.RecordVoucherEvent(middlewares.VoucherBelowMinimum)
		return false, nil
	}

	err = tx.Vouchers().CreateApplication(ctx, &models.ApplyVoucher{
		ID:        newID(),
		OrderID:   order.ID,
		VoucherID: v.ID,
		CreatedAt: l.now(),
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := tx.Vouchers().IncrementUsed(ctx, v.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperrors.Newf(apperrors.VoucherInvalid, "voucher %s has reached its usage limit", v.Code)
	}
	middlewares.RecordVoucherEvent(middlewares.VoucherApplied)
	return true, nil
}

// RemoveFromOrder 券未应用时返回 NotFound
func (l *VoucherLedger) RemoveFromOrder(ctx context.Context, orderID, voucherID string) error {
	err := l.store.ExecTx(ctx, func(tx repositories.Store) error {
		return l.removeTx(ctx, tx, orderID, voucherID)
	})
	return fail(l.logger, "remove voucher", err)
}

func (l *VoucherLedger) removeTx(ctx context.Context, tx repositories.Store, orderID, voucherID string) error {
	removed, err := tx.Vouchers().DeleteApplication(ctx, orderID, voucherID)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.Newf(apperrors.NotFound, "voucher %s is not applied to order %s", voucherID, orderID)
	}
	if err := tx.Vouchers().DecrementUsed(ctx, voucherID); err != nil {
		return err
	}
	middlewares.RecordVoucherEvent(middlewares.VoucherReleased)
	return nil
}

// releaseAllTx 释放订单上的全部券, 订单取消或删除时使用
func (l *VoucherLedger) releaseAllTx(ctx context.Context, tx repositories.Store, orderID string) error {
	vouchers, err := tx.Vouchers().ListForOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, v := range vouchers {
		if err := l.removeTx(ctx, tx, orderID, v.ID); err != nil {
			return err
		}
	}
	return nil
}

// RedeemWithPoints 扣积分, 模板券使用次数 +1, 生成一张只属于该客户的一次性券
func (l *VoucherLedger) RedeemWithPoints(ctx context.Context, customerID, voucherID string) (*models.Voucher, error) {
	var minted *models.Voucher
	err := l.store.ExecTx(ctx, func(tx repositories.Store) error {
		customer, err := tx.Customers().GetByID(ctx, customerID)
		if err != nil {
			return notFound(err, "customer %s not found", customerID)
		}
		root, err := tx.Vouchers().GetByID(ctx, voucherID)
		if err != nil {
			return notFound(err, "voucher %s not found", voucherID)
		}

		now := l.now()
		switch {
		case !root.Root || root.PointCost <= 0:
			return apperrors.Newf(apperrors.VoucherNotRedeemable, "voucher %s cannot be redeemed with points", root.Code)
		case !root.Active || !root.InWindow(now):
			return apperrors.Newf(apperrors.VoucherNotRedeemable, "voucher %s is not currently redeemable", root.Code)
		case root.Exhausted():
			return apperrors.Newf(apperrors.VoucherNotRedeemable, "voucher %s has no redemptions left", root.Code)
		}

		ok, err := tx.Customers().DebitPoints(ctx, customer.ID, root.PointCost)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.InsufficientPoints,
				"redeeming %s costs %d points, balance is %d", root.Code, root.PointCost, customer.CouponPoints)
		}

		ok, err = tx.Vouchers().IncrementUsed(ctx, root.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.VoucherNotRedeemable, "voucher %s has no redemptions left", root.Code)
		}

		minted = &models.Voucher{
			ID:            newID(),
			Code:          mintCode(root.Code),
			DiscountType:  root.DiscountType,
			DiscountValue: root.DiscountValue,
			MinOrder:      root.MinOrder,
			MaxDiscount:   root.MaxDiscount,
			StartAt:       now,
			EndAt:         now.AddDate(0, 1, 0),
			UsageLimit:    1,
			Active:        true,
			RootID:        root.ID,
			OwnerID:       customer.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.Vouchers().Create(ctx, minted)
	})
	if err != nil {
		return nil, fail(l.logger, "redeem voucher", err)
	}

	middlewares.RecordVoucherEvent(middlewares.VoucherRedeemed)
	l.logger.Info().
		Str("customer_id", customerID).
		Str("root_voucher_id", voucherID).
		Str("voucher_code", minted.Code).
		Msg("voucher redeemed with points")
	return minted, nil
}

func (l *VoucherLedger) ListCustomerVouchers(ctx context.Context, customerID string) ([]models.Voucher, error) {
	vs, err := l.store.Vouchers().ListByOwner(ctx, customerID)
	if err != nil {
		return nil, fail(l.logger, "list vouchers", err)
	}
	return vs, nil
}

func mintCode(rootCode string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return rootCode + "-" + suffix
}
