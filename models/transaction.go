package models

import (
	"time"

	"gorm.io/gorm"
)

// 交易类型
const (
	TransactionTypeBuyNow        = "buy_now"
	TransactionTypeAcceptedOffer = "accepted_offer"
	TransactionTypeAuctionWin    = "auction_win"
)

// 交易状态
const (
	TransactionStatusPendingPayment = "pending_payment"
	TransactionStatusPaid           = "paid"
	TransactionStatusShipped        = "shipped"
	TransactionStatusDelivered      = "delivered"
	TransactionStatusCompleted      = "completed"
	TransactionStatusDisputed       = "disputed"
	TransactionStatusCancelled      = "cancelled"
	TransactionStatusRefunded       = "refunded"
)

// Transaction 交易结算模型
// 金额字段在创建时一次性固化，之后只允许变更状态/物流/里程碑时间戳
// 不变量：total = item_price + shipping 且 seller_payout + platform_fee = total
type Transaction struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookID          string         `gorm:"type:varchar(36);index;not null" json:"book_id"`
	BuyerID         string         `gorm:"type:varchar(36);index;not null" json:"buyer_id"`
	SellerID        string         `gorm:"type:varchar(36);index;not null" json:"seller_id"`
	TransactionType string         `gorm:"type:varchar(20);not null;comment:buy_now,accepted_offer,auction_win" json:"transaction_type"`
	ItemPrice       int64          `gorm:"not null" json:"item_price"`
	Shipping        int64          `gorm:"not null" json:"shipping"`
	PlatformFee     int64          `gorm:"not null" json:"platform_fee"`
	SellerPayout    int64          `gorm:"not null" json:"seller_payout"`
	Total           int64          `gorm:"not null" json:"total"`
	Status          string         `gorm:"type:varchar(20);default:pending_payment;index" json:"status"`
	TrackingNumber  string         `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	TrackingCarrier string         `gorm:"type:varchar(50)" json:"tracking_carrier,omitempty"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	ShippedAt       *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time     `json:"refunded_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	Book   Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Buyer  User `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Seller User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate 创建前钩子
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = generateUUID()
	}
	if t.Status == "" {
		t.Status = TransactionStatusPendingPayment
	}
	return nil
}
