package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipping  OrderStatus = "shipping"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipping, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal 普通流程下的终态
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Order struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CustomerID      string          `gorm:"not null;type:varchar(36);index" json:"customer_id"`
	ShippingName    string          `gorm:"type:varchar(100)" json:"shipping_name"`
	ShippingPhone   string          `gorm:"type:varchar(30)" json:"shipping_phone"`
	ShippingAddress string          `gorm:"type:varchar(255)" json:"shipping_address"`
	Note            string          `gorm:"type:varchar(500)" json:"note"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"subtotal"`
	Discount        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discount"`
	ShippingFee     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"shipping_fee"`
	Total           decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Success         bool            `gorm:"not null;default:false" json:"success"`
	SoldRecorded    bool            `gorm:"not null;default:false" json:"-"`
	PaymentLink     string          `gorm:"type:varchar(500)" json:"payment_link"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Details         []OrderDetail   `gorm:"-" json:"details,omitempty"`
}

// OrderDetail 下单时的价格快照
type OrderDetail struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID     string          `gorm:"not null;type:varchar(36);index" json:"order_id"`
	ProductID   string          `gorm:"not null;type:varchar(36);index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255)" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unit_price"`
}

func (d OrderDetail) LineTotal() decimal.Decimal {
	return d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// OrderLog 只追加的状态变更记录
type OrderLog struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID   string      `gorm:"not null;type:varchar(36);index" json:"order_id"`
	OldStatus OrderStatus `gorm:"type:varchar(20)" json:"old_status"`
	NewStatus OrderStatus `gorm:"type:varchar(20);not null" json:"new_status"`
	ActorID   string      `gorm:"type:varchar(36)" json:"actor_id"`
	Admin     bool        `gorm:"not null;default:false" json:"admin"`
	Note      string      `gorm:"type:varchar(255)" json:"note"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderUpdate 订单允许被修改的字段, nil 表示不修改
type OrderUpdate struct {
	Status          *OrderStatus
	Success         *bool
	SoldRecorded    *bool
	Subtotal        *decimal.Decimal
	Discount        *decimal.Decimal
	ShippingFee     *decimal.Decimal
	Total           *decimal.Decimal
	PaymentLink     *string
	PaidAt          *time.Time
	ShippingName    *string
	ShippingPhone   *string
	ShippingAddress *string
	Note            *string
}

// Columns 转换为列名 -> 值
func (u OrderUpdate) Columns() map[string]any {
	cols := make(map[string]any)
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Success != nil {
		cols["success"] = *u.Success
	}
	if u.SoldRecorded != nil {
		cols["sold_recorded"] = *u.SoldRecorded
	}
	if u.Subtotal != nil {
		cols["subtotal"] = *u.Subtotal
	}
	if u.Discount != nil {
		cols["discount"] = *u.Discount
	}
	if u.ShippingFee != nil {
		cols["shipping_fee"] = *u.ShippingFee
	}
	if u.Total != nil {
		cols["total"] = *u.Total
	}
	if u.PaymentLink != nil {
		cols["payment_link"] = *u.PaymentLink
	}
	if u.PaidAt != nil {
		cols["paid_at"] = *u.PaidAt
	}
	if u.ShippingName != nil {
		cols["shipping_name"] = *u.ShippingName
	}
	if u.ShippingPhone != nil {
		cols["shipping_phone"] = *u.ShippingPhone
	}
	if u.ShippingAddress != nil {
		cols["shipping_address"] = *u.ShippingAddress
	}
	if u.Note != nil {
		cols["note"] = *u.Note
	}
	return cols
}

// Apply 把修改写回内存中的订单
func (u OrderUpdate) Apply(o *Order) {
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.Success != nil {
		o.Success = *u.Success
	}
	if u.SoldRecorded != nil {
		o.SoldRecorded = *u.SoldRecorded
	}
	if u.Subtotal != nil {
		o.Subtotal = *u.Subtotal
	}
	if u.Discount != nil {
		o.Discount = *u.Discount
	}
	if u.ShippingFee != nil {
		o.ShippingFee = *u.ShippingFee
	}
	if u.Total != nil {
		o.Total = *u.Total
	}
	if u.PaymentLink != nil {
		o.PaymentLink = *u.PaymentLink
	}
	if u.PaidAt != nil {
		t := *u.PaidAt
		o.PaidAt = &t
	}
	if u.ShippingName != nil {
		o.ShippingName = *u.ShippingName
	}
	if u.ShippingPhone != nil {
		o.ShippingPhone = *u.ShippingPhone
	}
	if u.ShippingAddress != nil {
		o.ShippingAddress = *u.ShippingAddress
	}
	if u.Note != nil {
		o.Note = *u.Note
	}
}

type ShippingInfo struct {
	Name    string `json:"name" binding:"required,max=100"`
	Phone   string `json:"phone" binding:"required,max=30"`
	Address string `json:"address" binding:"required,max=255"`
	Note    string `json:"note" binding:"max=500"`
}

type LineItem struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"gte=0"`
}

type CreateOrderRequest struct {
	Shipping     ShippingInfo `json:"shipping" binding:"required"`
	Items        []LineItem   `json:"items" binding:"required,min=1,dive"`
	VoucherCodes []string     `json:"voucher_codes"`
}

type UpdateOrderRequest struct {
	Items           []LineItem `json:"items" binding:"dive"`
	ShippingName    *string    `json:"shipping_name" binding:"omitempty,max=100"`
	ShippingPhone   *string    `json:"shipping_phone" binding:"omitempty,max=30"`
	ShippingAddress *string    `json:"shipping_address" binding:"omitempty,max=255"`
	Note            *string    `json:"note" binding:"omitempty,max=500"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required,oneof=pending confirmed shipping completed cancelled"`
}

// OrderTotal 订单金额明细
type OrderTotal struct {
	OrderID     string          `json:"order_id"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
}

type OrderEvent struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Type       string      `json:"type"` // created, status_updated, payment_check, paid
	Status     OrderStatus `json:"status"`
	Total      string      `json:"total"`
	Occurred   time.Time   `json:"occurred"`
}

const (
	EventCreated       = "created"
	EventStatusUpdated = "status_updated"
	EventPaymentCheck  = "payment_check"
	EventPaid          = "paid"
)
