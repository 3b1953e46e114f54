package services

import (
	"fmt"

	"bookbid_go/apperrors"
	"bookbid_go/config"
	"bookbid_go/models"
	"bookbid_go/utils"

	"gorm.io/gorm"
)

// TransactionService 交易结算服务
type TransactionService struct {
	clock  utils.Clock
	policy *config.TradePolicy
}

// NewTransactionService 创建交易服务实例
func NewTransactionService() *TransactionService {
	return &TransactionService{
		clock:  utils.SystemClock,
		policy: config.GetTradePolicy(),
	}
}

// transactionStatusFlow 交易状态机
// 线性推进带分支：不允许回退，不允许跳过 shipped
var transactionStatusFlow = map[string][]string{
	models.TransactionStatusPendingPayment: {models.TransactionStatusPaid, models.TransactionStatusCancelled},
	models.TransactionStatusPaid:           {models.TransactionStatusShipped, models.TransactionStatusCancelled, models.TransactionStatusRefunded},
	models.TransactionStatusShipped:        {models.TransactionStatusDelivered},
	models.TransactionStatusDelivered:      {models.TransactionStatusCompleted, models.TransactionStatusDisputed},
	models.TransactionStatusDisputed:       {models.TransactionStatusCompleted, models.TransactionStatusRefunded},
	models.TransactionStatusCompleted:      {},
	models.TransactionStatusCancelled:      {},
	models.TransactionStatusRefunded:       {},
}

// canTransitionTransaction 判断交易状态转移是否合法
func canTransitionTransaction(from, to string) bool {
	for _, next := range transactionStatusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckoutRequest 结算请求
// 三种成交路径：直接购买 / 已接受的报价 / 拍卖胜出
type CheckoutRequest struct {
	Type      string `json:"type" binding:"required,oneof=buy_now accepted_offer auction_win"`
	BookID    string `json:"book_id" binding:"required_if=Type buy_now"`
	OfferID   string `json:"offer_id" binding:"required_if=Type accepted_offer"`
	AuctionID string `json:"auction_id" binding:"required_if=Type auction_win"`
}

// UpdateTrackingRequest 物流信息请求
type UpdateTrackingRequest struct {
	TrackingNumber  string `json:"tracking_number" binding:"required,max=100"`
	TrackingCarrier string `json:"tracking_carrier" binding:"required,max=50"`
}

// Checkout 买家结算，创建交易
// 金额拆分在这里一次性固化，之后不再变动
func (ts *TransactionService) Checkout(buyerID string, req *CheckoutRequest) (*models.Transaction, error) {
	var (
		book      models.Book
		itemPrice int64
	)

	// 1. 按成交路径定位书籍、校验授权并确定成交价
	switch req.Type {
	case models.TransactionTypeBuyNow:
		if err := config.DB.First(&book, "id = ?", req.BookID).Error; err != nil {
			return nil, fmt.Errorf("book %s: %w", req.BookID, apperrors.ErrNotFound)
		}
		if book.SellerID == buyerID {
			return nil, fmt.Errorf("cannot buy your own book: %w", apperrors.ErrValidation)
		}
		if book.Status != models.BookStatusActive {
			return nil, fmt.Errorf("book %s is %s: %w", book.ID, book.Status, apperrors.ErrInvalidState)
		}
		itemPrice = book.PriceCents

	case models.TransactionTypeAcceptedOffer:
		var offer models.Offer
		if err := config.DB.First(&offer, "id = ?", req.OfferID).Error; err != nil {
			return nil, fmt.Errorf("offer %s: %w", req.OfferID, apperrors.ErrNotFound)
		}
		if offer.BuyerID != buyerID {
			return nil, fmt.Errorf("offer %s was not made by this buyer: %w", req.OfferID, apperrors.ErrUnauthorized)
		}
		if offer.Status != models.OfferStatusAccepted {
			return nil, fmt.Errorf("offer %s is %s, only accepted offers can be settled: %w", req.OfferID, offer.Status, apperrors.ErrInvalidState)
		}
		if err := config.DB.First(&book, "id = ?", offer.BookID).Error; err != nil {
			return nil, fmt.Errorf("book %s: %w", offer.BookID, apperrors.ErrNotFound)
		}
		itemPrice = offer.SettlementAmount()

	case models.TransactionTypeAuctionWin:
		var auction models.Auction
		if err := config.DB.First(&auction, "id = ?", req.AuctionID).Error; err != nil {
			return nil, fmt.Errorf("auction %s: %w", req.AuctionID, apperrors.ErrNotFound)
		}
		if auction.Status != models.AuctionStatusEnded {
			return nil, fmt.Errorf("auction %s is %s: %w", req.AuctionID, auction.Status, apperrors.ErrInvalidState)
		}
		if auction.CurrentHighBidder == nil || *auction.CurrentHighBidder != buyerID {
			return nil, fmt.Errorf("auction %s was not won by this buyer: %w", req.AuctionID, apperrors.ErrUnauthorized)
		}
		if !auction.ReserveMet() {
			return nil, fmt.Errorf("auction %s closed below reserve price: %w", req.AuctionID, apperrors.ErrInvalidState)
		}
		if err := config.DB.First(&book, "id = ?", auction.BookID).Error; err != nil {
			return nil, fmt.Errorf("book %s: %w", auction.BookID, apperrors.ErrNotFound)
		}
		itemPrice = auction.CurrentBid

	default:
		return nil, fmt.Errorf("unknown transaction type %s: %w", req.Type, apperrors.ErrValidation)
	}

	// 2. 已售出的书不允许二次结算
	if book.Status == models.BookStatusSold {
		return nil, fmt.Errorf("book %s has already been sold: %w", book.ID, apperrors.ErrInvalidState)
	}

	// 3. 固化费用拆分
	fees := ComputeFees(itemPrice, book.ShippingCents, &ts.policy.Fee)

	txn := &models.Transaction{
		BookID:          book.ID,
		BuyerID:         buyerID,
		SellerID:        book.SellerID,
		TransactionType: req.Type,
		ItemPrice:       fees.ItemPrice,
		Shipping:        fees.Shipping,
		PlatformFee:     fees.PlatformFee,
		SellerPayout:    fees.SellerPayout,
		Total:           fees.Total,
		Status:          models.TransactionStatusPendingPayment,
	}

	// 4. 创建交易并将书籍置为已售，同一事务完成
	// 状态守卫保证两个买家不可能同时对一本书结算成功
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		return models.TransitionBookStatus(tx, book.ID, book.Status, models.BookStatusSold)
	})
	if err != nil {
		return nil, err
	}

	// 5. 发布事件
	notifyEvent("transaction_created", map[string]interface{}{
		"transaction_id": txn.ID,
		"book_id":        txn.BookID,
		"buyer_id":       txn.BuyerID,
		"seller_id":      txn.SellerID,
		"type":           txn.TransactionType,
		"total":          txn.Total,
	})

	return txn, nil
}

// GetTransactions 查询交易列表
// role: buyer / seller / all，只返回调用者作为当事方的交易
func (ts *TransactionService) GetTransactions(userID, role, status string, page, limit int) ([]models.Transaction, int64, error) {
	query := config.DB.Model(&models.Transaction{})

	switch role {
	case "buyer":
		query = query.Where("buyer_id = ?", userID)
	case "seller":
		query = query.Where("seller_id = ?", userID)
	default:
		query = query.Where("buyer_id = ? OR seller_id = ?", userID, userID)
	}

	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var txns []models.Transaction
	if err := query.
		Preload("Book").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&txns).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get transactions: %w", err)
	}

	return txns, total, nil
}

// GetTransaction 获取交易详情（仅限买卖双方）
func (ts *TransactionService) GetTransaction(transactionID, userID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := config.DB.Preload("Book").First(&txn, "id = ?", transactionID).Error; err != nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrNotFound)
	}

	if txn.BuyerID != userID && txn.SellerID != userID {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrUnauthorized)
	}

	return &txn, nil
}

// UpdateTracking 卖家填写物流信息并标记已发货
// 前置状态必须是 paid：不回退、不跳过收款
func (ts *TransactionService) UpdateTracking(transactionID, sellerID string, req *UpdateTrackingRequest) (*models.Transaction, error) {
	var txn models.Transaction
	if err := config.DB.First(&txn, "id = ?", transactionID).Error; err != nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrNotFound)
	}

	if txn.SellerID != sellerID {
		return nil, fmt.Errorf("transaction %s belongs to another seller: %w", transactionID, apperrors.ErrUnauthorized)
	}
	if !canTransitionTransaction(txn.Status, models.TransactionStatusShipped) {
		return nil, fmt.Errorf("transaction %s is %s, cannot ship: %w", transactionID, txn.Status, apperrors.ErrInvalidState)
	}

	now := ts.clock.Now()
	result := config.DB.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, txn.Status).
		Updates(map[string]interface{}{
			"status":           models.TransactionStatusShipped,
			"tracking_number":  req.TrackingNumber,
			"tracking_carrier": req.TrackingCarrier,
			"shipped_at":       now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update tracking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("transaction %s changed concurrently: %w", txn.ID, apperrors.ErrConflict)
	}

	txn.Status = models.TransactionStatusShipped
	txn.TrackingNumber = req.TrackingNumber
	txn.TrackingCarrier = req.TrackingCarrier
	txn.ShippedAt = &now

	notifyEvent("transaction_shipped", map[string]interface{}{
		"transaction_id": txn.ID,
		"buyer_id":       txn.BuyerID,
		"tracking":       req.TrackingNumber,
		"carrier":        req.TrackingCarrier,
	})

	return &txn, nil
}

// milestoneTimestamps 里程碑状态对应的时间戳列
var milestoneTimestamps = map[string]string{
	models.TransactionStatusPaid:      "paid_at",
	models.TransactionStatusDelivered: "delivered_at",
	models.TransactionStatusCompleted: "completed_at",
	models.TransactionStatusCancelled: "cancelled_at",
	models.TransactionStatusRefunded:  "refunded_at",
}

// applyMilestone 推进交易到目标状态
// 幂等：重放交易已处于的里程碑直接返回成功，不重复触发任何副作用
func (ts *TransactionService) applyMilestone(transactionID, target string) (*models.Transaction, bool, error) {
	var txn models.Transaction
	if err := config.DB.First(&txn, "id = ?", transactionID).Error; err != nil {
		return nil, false, fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrNotFound)
	}

	// 重放的里程碑事件是无操作
	if txn.Status == target {
		return &txn, false, nil
	}

	if !canTransitionTransaction(txn.Status, target) {
		return nil, false, fmt.Errorf("transaction %s is %s, cannot move to %s: %w",
			transactionID, txn.Status, target, apperrors.ErrInvalidState)
	}

	now := ts.clock.Now()
	updates := map[string]interface{}{"status": target}
	if col, ok := milestoneTimestamps[target]; ok {
		updates[col] = now
	}

	result := config.DB.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, txn.Status).
		Updates(updates)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, false, fmt.Errorf("transaction %s changed concurrently: %w", txn.ID, apperrors.ErrConflict)
	}

	txn.Status = target
	switch target {
	case models.TransactionStatusPaid:
		txn.PaidAt = &now
	case models.TransactionStatusDelivered:
		txn.DeliveredAt = &now
	case models.TransactionStatusCompleted:
		txn.CompletedAt = &now
	case models.TransactionStatusCancelled:
		txn.CancelledAt = &now
	case models.TransactionStatusRefunded:
		txn.RefundedAt = &now
	}

	return &txn, true, nil
}

// MarkPaid 支付回调：pending_payment -> paid
func (ts *TransactionService) MarkPaid(transactionID string) (*models.Transaction, error) {
	txn, applied, err := ts.applyMilestone(transactionID, models.TransactionStatusPaid)
	if err != nil {
		return nil, err
	}
	if applied {
		notifyEvent("transaction_paid", map[string]interface{}{
			"transaction_id": txn.ID,
			"seller_id":      txn.SellerID,
			"total":          txn.Total,
		})
	}
	return txn, nil
}

// MarkDelivered 物流回调：shipped -> delivered
func (ts *TransactionService) MarkDelivered(transactionID string) (*models.Transaction, error) {
	txn, applied, err := ts.applyMilestone(transactionID, models.TransactionStatusDelivered)
	if err != nil {
		return nil, err
	}
	if applied {
		notifyEvent("transaction_delivered", map[string]interface{}{
			"transaction_id": txn.ID,
			"buyer_id":       txn.BuyerID,
		})
	}
	return txn, nil
}

// Complete 买家验收：delivered -> completed
func (ts *TransactionService) Complete(transactionID, buyerID string) (*models.Transaction, error) {
	if err := ts.requireBuyer(transactionID, buyerID); err != nil {
		return nil, err
	}
	txn, applied, err := ts.applyMilestone(transactionID, models.TransactionStatusCompleted)
	if err != nil {
		return nil, err
	}
	if applied {
		notifyEvent("transaction_completed", map[string]interface{}{
			"transaction_id": txn.ID,
			"seller_id":      txn.SellerID,
			"seller_payout":  txn.SellerPayout,
		})
	}
	return txn, nil
}

// Dispute 买家发起争议：delivered -> disputed
func (ts *TransactionService) Dispute(transactionID, buyerID string) (*models.Transaction, error) {
	if err := ts.requireBuyer(transactionID, buyerID); err != nil {
		return nil, err
	}
	txn, applied, err := ts.applyMilestone(transactionID, models.TransactionStatusDisputed)
	if err != nil {
		return nil, err
	}
	if applied {
		notifyEvent("transaction_disputed", map[string]interface{}{
			"transaction_id": txn.ID,
			"seller_id":      txn.SellerID,
		})
	}
	return txn, nil
}

// Cancel 取消交易（买卖双方均可，仅限付款前后早期状态）
func (ts *TransactionService) Cancel(transactionID, userID string) (*models.Transaction, error) {
	var probe models.Transaction
	if err := config.DB.Select("id", "buyer_id", "seller_id").First(&probe, "id = ?", transactionID).Error; err != nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrNotFound)
	}
	if probe.BuyerID != userID && probe.SellerID != userID {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrUnauthorized)
	}

	txn, applied, err := ts.applyMilestone(transactionID, models.TransactionStatusCancelled)
	if err != nil {
		return nil, err
	}
	if applied {
		notifyEvent("transaction_cancelled", map[string]interface{}{
			"transaction_id": txn.ID,
		})
	}
	return txn, nil
}

// Refund 退款回调：paid/disputed -> refunded
func (ts *TransactionService) Refund(transactionID string) (*models.Transaction, error) {
	txn, applied, err := ts.applyMilestone(transactionID, models.TransactionStatusRefunded)
	if err != nil {
		return nil, err
	}
	if applied {
		notifyEvent("transaction_refunded", map[string]interface{}{
			"transaction_id": txn.ID,
			"buyer_id":       txn.BuyerID,
			"total":          txn.Total,
		})
	}
	return txn, nil
}

// requireBuyer 校验调用者是交易买家
func (ts *TransactionService) requireBuyer(transactionID, buyerID string) error {
	var probe models.Transaction
	if err := config.DB.Select("id", "buyer_id").First(&probe, "id = ?", transactionID).Error; err != nil {
		return fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrNotFound)
	}
	if probe.BuyerID != buyerID {
		return fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrUnauthorized)
	}
	return nil
}
