package models

import "time"

// Review (customer_id, product_id) 唯一
type Review struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CustomerID string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_customer_product" json:"customer_id"`
	ProductID  string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_customer_product;index" json:"product_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Content    string    `gorm:"type:text" json:"content"`
	Comments   []Comment `gorm:"-" json:"comments,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Comment struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ReviewID   string    `gorm:"not null;type:varchar(36);index" json:"review_id"`
	CustomerID string    `gorm:"not null;type:varchar(36)" json:"customer_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateReviewRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Content   string `json:"content" binding:"max=2000"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,max=1000"`
}
