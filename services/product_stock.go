package services

import (
	"context"

	"shop-service/apperrors"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/repositories"
)

// ProductStock 库存的预留与归还, 所有方法都在调用方的事务内执行
type ProductStock struct{}

func NewProductStock() *ProductStock {
	return &ProductStock{}
}

// Reserve 扣减库存并返回商品, 用于价格快照
func (ps *ProductStock) Reserve(ctx context.Context, tx repositories.Store, productID string, qty int) (*models.Product, error) {
	if qty <= 0 {
		return nil, apperrors.Newf(apperrors.ValidationError, "quantity for product %s must be positive", productID)
	}
	p, err := tx.Products().GetByID(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product %s not found", productID)
	}
	if !p.Available() {
		return nil, apperrors.Newf(apperrors.NotFound, "product %s is not available", productID)
	}

	ok, err := tx.Products().DecrementStock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		middlewares.RecordStockRejection()
		return nil, apperrors.Newf(apperrors.InsufficientStock,
			"insufficient stock for product %s: requested %d, available %d", productID, qty, p.Stock)
	}
	p.Stock -= qty
	return p, nil
}

// Restore 不检查上限, 只应归还之前预留的数量
func (ps *ProductStock) Restore(ctx context.Context, tx repositories.Store, productID string, qty int) error {
	if qty <= 0 {
		return apperrors.Newf(apperrors.ValidationError, "quantity for product %s must be positive", productID)
	}
	if err := tx.Products().IncrementStock(ctx, productID, qty); err != nil {
		return notFound(err, "product %s not found", productID)
	}
	return nil
}

// MarkSold 是否重复计数由调用方保证
func (ps *ProductStock) MarkSold(ctx context.Context, tx repositories.Store, productID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := tx.Products().IncrementSold(ctx, productID, qty); err != nil {
		return notFound(err, "product %s not found", productID)
	}
	return nil
}

// Adjust 正数预留, 负数归还
func (ps *ProductStock) Adjust(ctx context.Context, tx repositories.Store, productID string, delta int) error {
	switch {
	case delta > 0:
		_, err := ps.Reserve(ctx, tx, productID, delta)
		return err
	case delta < 0:
		return ps.Restore(ctx, tx, productID, -delta)
	}
	return nil
}
