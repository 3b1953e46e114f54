package models

import (
	"time"

	"gorm.io/gorm"
)

// 书籍状态
const (
	BookStatusDraft   = "draft"   // 草稿，未上架
	BookStatusActive  = "active"  // 可售
	BookStatusPending = "pending" // 被拍卖/已接受报价锁定，等待结算
	BookStatusSold    = "sold"    // 已售出
	BookStatusRemoved = "removed" // 已下架
)

// Book 书籍模型
// 价格统一使用最小货币单位（分），避免浮点运算丢失金额
type Book struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title         string         `gorm:"type:varchar(200);not null;index" json:"title"`
	Author        string         `gorm:"type:varchar(100);index" json:"author"`
	Description   string         `gorm:"type:text" json:"description,omitempty"`
	Condition     string         `gorm:"type:varchar(20)" json:"condition"`
	PriceCents    int64          `gorm:"not null" json:"price_cents"`
	ShippingCents int64          `gorm:"not null;default:0" json:"shipping_cents"`
	SellerID      string         `gorm:"type:varchar(36);index;not null" json:"seller_id"`
	Status        string         `gorm:"type:varchar(20);default:draft;index;comment:draft,active,pending,sold,removed" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	Seller User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// TableName 指定表名
func (Book) TableName() string {
	return "books"
}

// BeforeCreate 创建前钩子
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = generateUUID()
	}
	if b.Status == "" {
		b.Status = BookStatusDraft
	}
	return nil
}
