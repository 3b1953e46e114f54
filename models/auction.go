package models

import (
	"time"

	"gorm.io/gorm"
)

// 拍卖状态
const (
	AuctionStatusActive    = "active"
	AuctionStatusEnded     = "ended"
	AuctionStatusCancelled = "cancelled"
)

// Auction 拍卖模型
// 一本书最多存在一个拍卖（含历史记录），由 book_id 唯一索引保证
// 不变量：current_bid >= starting_bid，且在拍卖生命周期内单调不减
type Auction struct {
	ID                string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookID            string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"book_id"`
	SellerID          string         `gorm:"type:varchar(36);index;not null" json:"seller_id"`
	StartingBid       int64          `gorm:"not null" json:"starting_bid"`
	CurrentBid        int64          `gorm:"not null" json:"current_bid"`
	ReservePrice      *int64         `json:"reserve_price,omitempty"`
	CurrentHighBidder *string        `gorm:"type:varchar(36)" json:"current_high_bidder,omitempty"`
	Status            string         `gorm:"type:varchar(20);default:active;index;comment:active,ended,cancelled" json:"status"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `gorm:"index" json:"end_time"`
	TotalBids         int            `gorm:"default:0" json:"total_bids"`
	UniqueBidders     int            `gorm:"default:0" json:"unique_bidders"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	Book Book  `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Bids []Bid `gorm:"foreignKey:AuctionID" json:"bids,omitempty"`
}

// ReserveMet 保留价是否已达到（未设置保留价视为已达到）
func (a *Auction) ReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentBid >= *a.ReservePrice
}

// TableName 指定表名
func (Auction) TableName() string {
	return "auctions"
}

// BeforeCreate 创建前钩子
func (a *Auction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	return nil
}
