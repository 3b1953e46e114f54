package models

import (
	"time"

	"gorm.io/gorm"
)

// 报价状态
const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusCountered = "countered"
	OfferStatusExpired   = "expired"
)

// Offer 报价模型
// 同一本书允许多个买家并发报价，不做唯一性约束
// 过期采用读时惰性判定，存储的 status 在两次读取之间可能过时
type Offer struct {
	ID                  string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookID              string         `gorm:"type:varchar(36);index;not null" json:"book_id"`
	BuyerID             string         `gorm:"type:varchar(36);index;not null" json:"buyer_id"`
	SellerID            string         `gorm:"type:varchar(36);index;not null" json:"seller_id"`
	OfferAmount         int64          `gorm:"not null" json:"offer_amount"`
	Message             string         `gorm:"type:text" json:"message,omitempty"`
	Status              string         `gorm:"type:varchar(20);default:pending;index;comment:pending,accepted,rejected,countered,expired" json:"status"`
	ExpiresAt           time.Time      `gorm:"index" json:"expires_at"`
	CounterOfferAmount  *int64         `json:"counter_offer_amount,omitempty"`
	CounterOfferMessage string         `gorm:"type:text" json:"counter_offer_message,omitempty"`
	RespondedAt         *time.Time     `json:"responded_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	Book  Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Buyer User `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
}

// SettlementAmount 结算价：已还价的报价按还价金额结算
func (o *Offer) SettlementAmount() int64 {
	if o.CounterOfferAmount != nil {
		return *o.CounterOfferAmount
	}
	return o.OfferAmount
}

// TableName 指定表名
func (Offer) TableName() string {
	return "offers"
}

// BeforeCreate 创建前钩子
func (o *Offer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = generateUUID()
	}
	if o.Status == "" {
		o.Status = OfferStatusPending
	}
	return nil
}
