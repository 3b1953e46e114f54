package models

import (
	"time"

	"gorm.io/gorm"
)

// Bid 出价模型
// 出价是追加式日志，创建后不可修改；is_winning_bid 仅在拍卖结束时回填
type Bid struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AuctionID    string    `gorm:"type:varchar(36);index;not null" json:"auction_id"`
	BidderID     string    `gorm:"type:varchar(36);index;not null" json:"bidder_id"`
	Amount       int64     `gorm:"not null" json:"amount"`
	IsWinningBid bool      `gorm:"default:false" json:"is_winning_bid"`
	BidTime      time.Time `gorm:"index" json:"bid_time"`

	// 关联关系
	Auction Auction `gorm:"foreignKey:AuctionID" json:"auction,omitempty"`
	Bidder  User    `gorm:"foreignKey:BidderID" json:"bidder,omitempty"`
}

// TableName 指定表名
func (Bid) TableName() string {
	return "bids"
}

// BeforeCreate 创建前钩子
func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = generateUUID()
	}
	return nil
}
