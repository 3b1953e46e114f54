package services

import (
	"fmt"
	"time"

	"bookbid_go/apperrors"
	"bookbid_go/config"
	"bookbid_go/middleware"
	"bookbid_go/models"
	"bookbid_go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OfferService 报价服务
type OfferService struct {
	clock  utils.Clock
	policy *config.TradePolicy
}

// NewOfferService 创建报价服务实例
func NewOfferService() *OfferService {
	return &OfferService{
		clock:  utils.SystemClock,
		policy: config.GetTradePolicy(),
	}
}

// CreateOfferRequest 创建报价请求
type CreateOfferRequest struct {
	BookID      string `json:"book_id" binding:"required"`
	OfferAmount int64  `json:"offer_amount" binding:"required,gt=0"`
	Message     string `json:"message" binding:"max=500"`
}

// CounterOfferRequest 还价请求
type CounterOfferRequest struct {
	CounterAmount int64  `json:"counter_amount" binding:"required,gt=0"`
	Message       string `json:"message" binding:"max=500"`
}

// RespondCounterRequest 买家对还价的答复
type RespondCounterRequest struct {
	Accept bool `json:"accept"`
}

// OfferFilter 报价查询条件
type OfferFilter struct {
	BuyerID  string
	SellerID string
	BookID   string
	Status   string
}

// CreateOffer 创建报价
// 同一本书允许多个买家并发报价；报价金额不与标价比较，卖家自行决定
func (os *OfferService) CreateOffer(buyerID string, req *CreateOfferRequest) (*models.Offer, error) {
	// 1. 查找书籍
	var book models.Book
	if err := config.DB.First(&book, "id = ?", req.BookID).Error; err != nil {
		return nil, fmt.Errorf("book %s: %w", req.BookID, apperrors.ErrNotFound)
	}

	// 2. 不能给自己的书报价
	if book.SellerID == buyerID {
		return nil, fmt.Errorf("cannot make an offer on your own book: %w", apperrors.ErrValidation)
	}

	// 3. 只有在售的书接受报价
	if book.Status != models.BookStatusActive {
		return nil, fmt.Errorf("book %s is %s and not accepting offers: %w", req.BookID, book.Status, apperrors.ErrInvalidState)
	}

	offer := &models.Offer{
		BookID:      req.BookID,
		BuyerID:     buyerID,
		SellerID:    book.SellerID,
		OfferAmount: req.OfferAmount,
		Message:     req.Message,
		Status:      models.OfferStatusPending,
		ExpiresAt:   os.clock.Now().Add(os.policy.OfferTTL),
	}

	if err := config.DB.Create(offer).Error; err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	notifyEvent("offer_created", map[string]interface{}{
		"offer_id":  offer.ID,
		"book_id":   offer.BookID,
		"buyer_id":  buyerID,
		"seller_id": offer.SellerID,
		"amount":    offer.OfferAmount,
	})

	return offer, nil
}

// resolveOfferStatus 计算报价在给定时刻的真实状态（纯函数）
// pending 与 countered 都受48小时窗口约束，窗口过后读到的必须是 expired
func resolveOfferStatus(offer *models.Offer, now time.Time) string {
	if (offer.Status == models.OfferStatusPending || offer.Status == models.OfferStatusCountered) &&
		offer.ExpiresAt.Before(now) {
		return models.OfferStatusExpired
	}
	return offer.Status
}

// expireStale 在读边界上惰性落库过期状态
// 没有后台清扫任务，过期在每次访问时机会性地纠正；
// 条件更新以存储状态为守卫，对已过期的报价重复执行是无操作而非错误
func (os *OfferService) expireStale(offer *models.Offer) {
	resolved := resolveOfferStatus(offer, os.clock.Now())
	if resolved == offer.Status {
		return
	}

	if err := config.DB.Model(&models.Offer{}).
		Where("id = ? AND status = ?", offer.ID, offer.Status).
		Update("status", models.OfferStatusExpired).Error; err != nil {
		middleware.WarnLogger("failed to persist offer expiry",
			zap.String("offer_id", offer.ID),
			zap.Error(err),
		)
	}
	offer.Status = models.OfferStatusExpired
}

// GetOffer 获取报价详情（应用惰性过期）
func (os *OfferService) GetOffer(offerID, userID string) (*models.Offer, error) {
	var offer models.Offer
	if err := config.DB.Preload("Book").First(&offer, "id = ?", offerID).Error; err != nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, apperrors.ErrNotFound)
	}

	// 只有买卖双方可以查看
	if offer.BuyerID != userID && offer.SellerID != userID {
		return nil, fmt.Errorf("offer %s: %w", offerID, apperrors.ErrUnauthorized)
	}

	os.expireStale(&offer)
	return &offer, nil
}

// GetOffers 按条件查询报价列表（应用惰性过期）
// 先对查询范围内的过期报价批量落库，再查询，保证状态筛选看到的是纠正后的状态
func (os *OfferService) GetOffers(filter *OfferFilter, page, limit int) ([]models.Offer, int64, error) {
	now := os.clock.Now()

	scope := func(q *gorm.DB) *gorm.DB {
		if filter.BuyerID != "" {
			q = q.Where("buyer_id = ?", filter.BuyerID)
		}
		if filter.SellerID != "" {
			q = q.Where("seller_id = ?", filter.SellerID)
		}
		if filter.BookID != "" {
			q = q.Where("book_id = ?", filter.BookID)
		}
		return q
	}

	// 1. 惰性过期：范围内所有超窗的 pending/countered 一次性纠正
	if err := scope(config.DB.Model(&models.Offer{})).
		Where("status IN ? AND expires_at < ?",
			[]string{models.OfferStatusPending, models.OfferStatusCountered}, now).
		Update("status", models.OfferStatusExpired).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to expire stale offers: %w", err)
	}

	// 2. 查询
	query := scope(config.DB.Model(&models.Offer{}))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count offers: %w", err)
	}

	var offers []models.Offer
	if err := query.
		Preload("Book").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&offers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get offers: %w", err)
	}

	return offers, total, nil
}

// loadSellerOffer 加载报价并校验卖家身份
func (os *OfferService) loadSellerOffer(offerID, sellerID string) (*models.Offer, error) {
	var offer models.Offer
	if err := config.DB.First(&offer, "id = ?", offerID).Error; err != nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, apperrors.ErrNotFound)
	}
	if offer.SellerID != sellerID {
		return nil, fmt.Errorf("offer %s belongs to another seller: %w", offerID, apperrors.ErrUnauthorized)
	}
	return &offer, nil
}

// AcceptOffer 接受报价
// 接受只是授权这位买家按报价金额结算，交易在买家完成结算时才创建
func (os *OfferService) AcceptOffer(offerID, sellerID string) (*models.Offer, error) {
	offer, err := os.loadSellerOffer(offerID, sellerID)
	if err != nil {
		return nil, err
	}

	// 无论之前的读取是否已落库过期，这里都独立重查时间窗口
	if resolveOfferStatus(offer, os.clock.Now()) == models.OfferStatusExpired {
		os.expireStale(offer)
		return nil, fmt.Errorf("offer %s expired at %s: %w", offerID, offer.ExpiresAt.Format(time.RFC3339), apperrors.ErrExpired)
	}
	if offer.Status != models.OfferStatusPending {
		return nil, fmt.Errorf("offer %s is %s: %w", offerID, offer.Status, apperrors.ErrInvalidState)
	}

	if err := os.acceptTx(offer); err != nil {
		return nil, err
	}

	notifyEvent("offer_accepted", map[string]interface{}{
		"offer_id": offer.ID,
		"book_id":  offer.BookID,
		"buyer_id": offer.BuyerID,
		"amount":   offer.SettlementAmount(),
	})

	return offer, nil
}

// acceptTx 落库接受状态并锁定书籍
// 书籍 active -> pending，防止买断与已授权的结算互相竞争
func (os *OfferService) acceptTx(offer *models.Offer) error {
	now := os.clock.Now()
	fromStatus := offer.Status

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var book models.Book
		if err := tx.First(&book, "id = ?", offer.BookID).Error; err != nil {
			return fmt.Errorf("book %s: %w", offer.BookID, apperrors.ErrNotFound)
		}
		if book.Status != models.BookStatusActive {
			return fmt.Errorf("book %s is no longer available: %w", offer.BookID, apperrors.ErrInvalidState)
		}

		result := tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offer.ID, fromStatus).
			Updates(map[string]interface{}{
				"status":       models.OfferStatusAccepted,
				"responded_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to accept offer: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("offer %s changed concurrently: %w", offer.ID, apperrors.ErrConflict)
		}

		return models.TransitionBookStatus(tx, offer.BookID, models.BookStatusActive, models.BookStatusPending)
	})
	if err != nil {
		return err
	}

	offer.Status = models.OfferStatusAccepted
	offer.RespondedAt = &now
	return nil
}

// RejectOffer 拒绝报价（可从 pending 或 countered 拒绝）
func (os *OfferService) RejectOffer(offerID, sellerID string) (*models.Offer, error) {
	offer, err := os.loadSellerOffer(offerID, sellerID)
	if err != nil {
		return nil, err
	}

	if resolveOfferStatus(offer, os.clock.Now()) == models.OfferStatusExpired {
		os.expireStale(offer)
		return nil, fmt.Errorf("offer %s has expired: %w", offerID, apperrors.ErrExpired)
	}
	if offer.Status != models.OfferStatusPending && offer.Status != models.OfferStatusCountered {
		return nil, fmt.Errorf("offer %s is %s: %w", offerID, offer.Status, apperrors.ErrInvalidState)
	}

	now := os.clock.Now()
	result := config.DB.Model(&models.Offer{}).
		Where("id = ? AND status = ?", offer.ID, offer.Status).
		Updates(map[string]interface{}{
			"status":       models.OfferStatusRejected,
			"responded_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to reject offer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("offer %s changed concurrently: %w", offer.ID, apperrors.ErrConflict)
	}

	offer.Status = models.OfferStatusRejected
	offer.RespondedAt = &now

	notifyEvent("offer_rejected", map[string]interface{}{
		"offer_id": offer.ID,
		"book_id":  offer.BookID,
		"buyer_id": offer.BuyerID,
	})

	return offer, nil
}

// CounterOffer 卖家还价
func (os *OfferService) CounterOffer(offerID, sellerID string, req *CounterOfferRequest) (*models.Offer, error) {
	offer, err := os.loadSellerOffer(offerID, sellerID)
	if err != nil {
		return nil, err
	}

	if resolveOfferStatus(offer, os.clock.Now()) == models.OfferStatusExpired {
		os.expireStale(offer)
		return nil, fmt.Errorf("offer %s has expired: %w", offerID, apperrors.ErrExpired)
	}
	if offer.Status != models.OfferStatusPending {
		return nil, fmt.Errorf("offer %s is %s: %w", offerID, offer.Status, apperrors.ErrInvalidState)
	}

	now := os.clock.Now()
	result := config.DB.Model(&models.Offer{}).
		Where("id = ? AND status = ?", offer.ID, models.OfferStatusPending).
		Updates(map[string]interface{}{
			"status":                models.OfferStatusCountered,
			"counter_offer_amount":  req.CounterAmount,
			"counter_offer_message": req.Message,
			"responded_at":          now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to counter offer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("offer %s changed concurrently: %w", offer.ID, apperrors.ErrConflict)
	}

	offer.Status = models.OfferStatusCountered
	offer.CounterOfferAmount = &req.CounterAmount
	offer.CounterOfferMessage = req.Message
	offer.RespondedAt = &now

	notifyEvent("offer_countered", map[string]interface{}{
		"offer_id":       offer.ID,
		"book_id":        offer.BookID,
		"buyer_id":       offer.BuyerID,
		"counter_amount": req.CounterAmount,
	})

	return offer, nil
}

// RespondToCounter 买家答复卖家的还价
// accept=true 接受还价（按还价金额结算），否则拒绝
func (os *OfferService) RespondToCounter(offerID, buyerID string, accept bool) (*models.Offer, error) {
	var offer models.Offer
	if err := config.DB.First(&offer, "id = ?", offerID).Error; err != nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, apperrors.ErrNotFound)
	}
	if offer.BuyerID != buyerID {
		return nil, fmt.Errorf("offer %s belongs to another buyer: %w", offerID, apperrors.ErrUnauthorized)
	}

	if resolveOfferStatus(&offer, os.clock.Now()) == models.OfferStatusExpired {
		os.expireStale(&offer)
		return nil, fmt.Errorf("counter offer %s has expired: %w", offerID, apperrors.ErrExpired)
	}
	if offer.Status != models.OfferStatusCountered {
		return nil, fmt.Errorf("offer %s is %s: %w", offerID, offer.Status, apperrors.ErrInvalidState)
	}

	if accept {
		if err := os.acceptTx(&offer); err != nil {
			return nil, err
		}
		notifyEvent("counter_accepted", map[string]interface{}{
			"offer_id": offer.ID,
			"book_id":  offer.BookID,
			"amount":   offer.SettlementAmount(),
		})
		return &offer, nil
	}

	now := os.clock.Now()
	result := config.DB.Model(&models.Offer{}).
		Where("id = ? AND status = ?", offer.ID, models.OfferStatusCountered).
		Updates(map[string]interface{}{
			"status":       models.OfferStatusRejected,
			"responded_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to decline counter offer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("offer %s changed concurrently: %w", offer.ID, apperrors.ErrConflict)
	}

	offer.Status = models.OfferStatusRejected
	offer.RespondedAt = &now

	notifyEvent("counter_rejected", map[string]interface{}{
		"offer_id": offer.ID,
		"book_id":  offer.BookID,
	})

	return &offer, nil
}
