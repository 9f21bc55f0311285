package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string          `gorm:"not null;type:varchar(255)" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	Stock     int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Sold      int             `gorm:"not null;default:0" json:"sold"`
	Rating    int             `gorm:"not null;default:0" json:"rating"`
	Active    bool            `gorm:"not null;default:true" json:"active"`
	IsDeleted bool            `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Available 可下单
func (p *Product) Available() bool {
	return p.Active && !p.IsDeleted
}

type Customer struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string    `gorm:"type:varchar(100)" json:"name"`
	Email        string    `gorm:"uniqueIndex;type:varchar(100)" json:"email"`
	Phone        string    `gorm:"type:varchar(30)" json:"phone"`
	Address      string    `gorm:"type:varchar(255)" json:"address"`
	CouponPoints int       `gorm:"not null;default:0;check:coupon_points >= 0" json:"coupon_points"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
