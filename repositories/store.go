package repositories

import (
	"context"
	"errors"

	"shop-service/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrTxPanic   = errors.New("transaction panicked")
)

type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// DecrementStock 库存足够时扣减, 返回是否扣减成功
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	IncrementStock(ctx context.Context, id string, qty int) error
	IncrementSold(ctx context.Context, id string, qty int) error
	UpdateRating(ctx context.Context, id string, rating int) error
}

type CustomerRepository interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	// DebitPoints 积分足够时扣减, 返回是否扣减成功
	DebitPoints(ctx context.Context, id string, points int) (bool, error)
	CreditPoints(ctx context.Context, id string, points int) error
}

type VoucherRepository interface {
	Create(ctx context.Context, v *models.Voucher) error
	GetByID(ctx context.Context, id string) (*models.Voucher, error)
	GetByCode(ctx context.Context, code string) (*models.Voucher, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Voucher, error)
	// IncrementUsed 未达使用上限时 +1, 返回是否成功
	IncrementUsed(ctx context.Context, id string) (bool, error)
	// DecrementUsed 最小为 0
	DecrementUsed(ctx context.Context, id string) error

	GetApplication(ctx context.Context, orderID, voucherID string) (*models.ApplyVoucher, error)
	CreateApplication(ctx context.Context, a *models.ApplyVoucher) error
	DeleteApplication(ctx context.Context, orderID, voucherID string) (bool, error)
	// ListForOrder 按券码排序
	ListForOrder(ctx context.Context, orderID string) ([]models.Voucher, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetByIDForUpdate 锁定订单行直到事务结束
	GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	Update(ctx context.Context, id string, u models.OrderUpdate) error
	Delete(ctx context.Context, id string) error

	// ListDetails 按 product_id 排序
	ListDetails(ctx context.Context, orderID string) ([]models.OrderDetail, error)
	CreateDetail(ctx context.Context, d *models.OrderDetail) error
	UpdateDetailQuantity(ctx context.Context, detailID string, qty int) error
	DeleteDetail(ctx context.Context, detailID string) error

	AppendLog(ctx context.Context, l *models.OrderLog) error
	ListLogs(ctx context.Context, orderID string) ([]models.OrderLog, error)

	// HasCompletedPurchase 客户是否有包含该商品的已完成订单
	HasCompletedPurchase(ctx context.Context, customerID, productID string) (bool, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, r *models.Review) error
	GetByID(ctx context.Context, id string) (*models.Review, error)
	Exists(ctx context.Context, customerID, productID string) (bool, error)
	Delete(ctx context.Context, id string) error
	// RatingStats 返回评分总和与数量
	RatingStats(ctx context.Context, productID string) (sum int64, count int64, err error)
	ListByProduct(ctx context.Context, productID string) ([]models.Review, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, reviewID string) ([]models.Comment, error)
}

// Store 所有仓储的集合, ExecTx 内拿到的是事务内的 Store
type Store interface {
	Products() ProductRepository
	Customers() CustomerRepository
	Vouchers() VoucherRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	ExecTx(ctx context.Context, fn func(tx Store) error) error
}
