package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookbid_go/apperrors"
	"bookbid_go/config"
	"bookbid_go/models"
	"bookbid_go/utils"

	"gorm.io/gorm"
)

// AuctionService 拍卖服务
type AuctionService struct {
	clock  utils.Clock
	policy *config.TradePolicy
}

// NewAuctionService 创建拍卖服务实例
func NewAuctionService() *AuctionService {
	return &AuctionService{
		clock:  utils.SystemClock,
		policy: config.GetTradePolicy(),
	}
}

// CreateAuctionRequest 创建拍卖请求
type CreateAuctionRequest struct {
	BookID       string    `json:"book_id" binding:"required"`
	StartingBid  int64     `json:"starting_bid" binding:"required,gt=0"`
	ReservePrice *int64    `json:"reserve_price" binding:"omitempty,gt=0"`
	EndTime      time.Time `json:"end_time" binding:"required"`
}

// CreateAuction 创建拍卖
// 成功后书籍进入 pending，锁定期间不可被直接购买
func (as *AuctionService) CreateAuction(sellerID string, req *CreateAuctionRequest) (*models.Auction, error) {
	now := as.clock.Now()

	// 1. 查找书籍
	var book models.Book
	if err := config.DB.First(&book, "id = ?", req.BookID).Error; err != nil {
		return nil, fmt.Errorf("book %s: %w", req.BookID, apperrors.ErrNotFound)
	}

	// 2. 检查权限
	if book.SellerID != sellerID {
		return nil, fmt.Errorf("book %s belongs to another seller: %w", req.BookID, apperrors.ErrUnauthorized)
	}

	// 3. 检查书籍状态：仅草稿或在售的书可开拍
	if book.Status != models.BookStatusDraft && book.Status != models.BookStatusActive {
		return nil, fmt.Errorf("book %s is %s: %w", req.BookID, book.Status, apperrors.ErrInvalidState)
	}

	// 4. 截止时间必须在未来
	if !req.EndTime.After(now) {
		return nil, fmt.Errorf("end time must be in the future: %w", apperrors.ErrValidation)
	}

	// 5. 一本书只能有一个拍卖（含历史记录）
	var existing models.Auction
	err := config.DB.Where("book_id = ?", req.BookID).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("book %s: %w", req.BookID, apperrors.ErrDuplicateAuction)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing auction: %w", err)
	}

	auction := &models.Auction{
		BookID:       req.BookID,
		SellerID:     sellerID,
		StartingBid:  req.StartingBid,
		CurrentBid:   req.StartingBid,
		ReservePrice: req.ReservePrice,
		Status:       models.AuctionStatusActive,
		StartTime:    now,
		EndTime:      req.EndTime,
	}

	// 6. 创建拍卖并锁定书籍，同一事务完成
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(auction).Error; err != nil {
			return fmt.Errorf("failed to create auction: %w", err)
		}
		return models.TransitionBookStatus(tx, book.ID, book.Status, models.BookStatusPending)
	})
	if err != nil {
		return nil, err
	}

	// 7. 发布事件
	notifyEvent("auction_created", map[string]interface{}{
		"auction_id": auction.ID,
		"book_id":    auction.BookID,
		"seller_id":  sellerID,
		"end_time":   auction.EndTime.Unix(),
	})

	return auction, nil
}

// GetAuction 获取拍卖详情
func (as *AuctionService) GetAuction(auctionID string) (*models.Auction, error) {
	// 1. 尝试从Redis缓存获取
	cacheKey := fmt.Sprintf("auction:%s", auctionID)
	if config.RedisClient != nil {
		cached, err := config.RedisClient.Get(redisCtx, cacheKey).Result()
		if err == nil {
			var auction models.Auction
			if json.Unmarshal([]byte(cached), &auction) == nil {
				return &auction, nil
			}
		}
	}

	// 2. 从数据库查询
	var auction models.Auction
	if err := config.DB.Preload("Book").First(&auction, "id = ?", auctionID).Error; err != nil {
		return nil, fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}

	// 3. 异步缓存到Redis
	go func() {
		if config.RedisClient != nil {
			data, _ := json.Marshal(auction)
			config.RedisClient.Set(redisCtx, cacheKey, data, time.Minute)
		}
	}()

	return &auction, nil
}

// PlaceBid 出价
// 每次出价都重新对照墙上时钟检查截止时间，不依赖后台清扫任务
func (as *AuctionService) PlaceBid(auctionID, bidderID string, amount int64) (*models.Bid, error) {
	// 1. 查找拍卖
	var auction models.Auction
	if err := config.DB.First(&auction, "id = ?", auctionID).Error; err != nil {
		return nil, fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}

	// 2. 状态与时间窗口校验
	if auction.Status != models.AuctionStatusActive {
		return nil, fmt.Errorf("auction %s is %s: %w", auctionID, auction.Status, apperrors.ErrAuctionNotActive)
	}
	if !as.clock.Now().Before(auction.EndTime) {
		return nil, fmt.Errorf("auction %s closed at %s: %w", auctionID, auction.EndTime.Format(time.RFC3339), apperrors.ErrAuctionEnded)
	}

	// 3. 卖家不能给自己的拍卖出价
	if bidderID == auction.SellerID {
		return nil, fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrSelfBid)
	}

	// 4. 最小加价校验
	minimum := auction.CurrentBid + as.policy.MinBidIncrement
	if amount < minimum {
		return nil, fmt.Errorf("minimum acceptable bid is %d: %w", minimum, apperrors.ErrBidTooLow)
	}

	// 5. 原子落库
	bid, err := as.applyBid(&auction, bidderID, amount)
	if err != nil {
		return nil, err
	}

	// 6. 失效缓存并发布事件
	go as.clearAuctionCache(auctionID)
	notifyEvent("bid_placed", map[string]interface{}{
		"auction_id": auctionID,
		"bidder_id":  bidderID,
		"amount":     amount,
	})

	return bid, nil
}

// applyBid 以比较并交换方式写入出价
// 条件更新以读取时刻的 current_bid 为守卫：两个并发出价基于同一旧价竞争时
// 只有一个更新命中，落败方收到 Conflict，重新读取最新价后重试
func (as *AuctionService) applyBid(auction *models.Auction, bidderID string, amount int64) (*models.Bid, error) {
	bid := &models.Bid{
		AuctionID: auction.ID,
		BidderID:  bidderID,
		Amount:    amount,
		BidTime:   as.clock.Now(),
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		// 该买家是否首次对本拍卖出价
		var prior int64
		if err := tx.Model(&models.Bid{}).
			Where("auction_id = ? AND bidder_id = ?", auction.ID, bidderID).
			Count(&prior).Error; err != nil {
			return fmt.Errorf("failed to count prior bids: %w", err)
		}

		updates := map[string]interface{}{
			"current_bid":         amount,
			"current_high_bidder": bidderID,
			"total_bids":          gorm.Expr("total_bids + 1"),
		}
		if prior == 0 {
			updates["unique_bidders"] = gorm.Expr("unique_bidders + 1")
		}

		result := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ? AND current_bid = ?",
				auction.ID, models.AuctionStatusActive, auction.CurrentBid).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update auction: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("auction %s: current bid moved past %d: %w",
				auction.ID, auction.CurrentBid, apperrors.ErrConflict)
		}

		if err := tx.Create(bid).Error; err != nil {
			return fmt.Errorf("failed to record bid: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return bid, nil
}

// GetBidHistory 获取出价历史（分页，最新在前）
func (as *AuctionService) GetBidHistory(auctionID string, page, limit int) ([]models.Bid, int64, error) {
	var auction models.Auction
	if err := config.DB.Select("id").First(&auction, "id = ?", auctionID).Error; err != nil {
		return nil, 0, fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}

	query := config.DB.Model(&models.Bid{}).Where("auction_id = ?", auctionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bids: %w", err)
	}

	var bids []models.Bid
	if err := query.
		Order("bid_time DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&bids).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get bids: %w", err)
	}

	return bids, total, nil
}

// EndAuction 卖家手动结束拍卖
func (as *AuctionService) EndAuction(auctionID, sellerID string) (*models.Auction, error) {
	var auction models.Auction
	if err := config.DB.First(&auction, "id = ?", auctionID).Error; err != nil {
		return nil, fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}

	if auction.SellerID != sellerID {
		return nil, fmt.Errorf("auction %s belongs to another seller: %w", auctionID, apperrors.ErrUnauthorized)
	}

	if err := as.closeAuction(&auction); err != nil {
		return nil, err
	}

	go as.clearAuctionCache(auctionID)
	notifyEvent("auction_ended", map[string]interface{}{
		"auction_id":  auction.ID,
		"book_id":     auction.BookID,
		"current_bid": auction.CurrentBid,
		"reserve_met": auction.ReserveMet(),
	})

	return &auction, nil
}

// closeAuction 结束拍卖的统一算法，手动结束与到期清扫共用
// 有最高出价者时回填其成交出价；保留价未达到或无人出价则流拍，书籍重新上架。
// 成交时书籍保持 pending，交易由胜出买家的后续结算动作创建，
// 拍卖收盘不与支付耦合
func (as *AuctionService) closeAuction(auction *models.Auction) error {
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		// 状态守卫：并发的手动结束/清扫只有一方能完成关闭
		result := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", auction.ID, models.AuctionStatusActive).
			Update("status", models.AuctionStatusEnded)
		if result.Error != nil {
			return fmt.Errorf("failed to end auction: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("auction %s is not active: %w", auction.ID, apperrors.ErrAuctionNotActive)
		}

		// 状态翻转后重读本行再做判定：调用者的快照与关闭之间可能又落进
		// 一笔出价，胜者、成交价、保留价判定都必须以行内最新数据为准
		var current models.Auction
		if err := tx.First(&current, "id = ?", auction.ID).Error; err != nil {
			return fmt.Errorf("failed to reload auction: %w", err)
		}

		hasWinner := current.CurrentHighBidder != nil

		// 回填成交出价：最高出价者最近一笔等于 current_bid 的出价
		if hasWinner {
			var winning models.Bid
			if err := tx.
				Where("auction_id = ? AND bidder_id = ? AND amount = ?",
					current.ID, *current.CurrentHighBidder, current.CurrentBid).
				Order("bid_time DESC").
				First(&winning).Error; err != nil {
				return fmt.Errorf("failed to locate winning bid: %w", err)
			}
			if err := tx.Model(&winning).Update("is_winning_bid", true).Error; err != nil {
				return fmt.Errorf("failed to flag winning bid: %w", err)
			}
		}

		*auction = current

		if hasWinner && current.ReserveMet() {
			// 成交：书籍在开拍时已是 pending，保持不变，等待胜者结算
			return nil
		}

		// 流拍：书籍恢复在售
		return models.TransitionBookStatus(tx, current.BookID, models.BookStatusPending, models.BookStatusActive)
	})
	if err != nil {
		return err
	}

	auction.Status = models.AuctionStatusEnded
	return nil
}

// CancelAuction 取消拍卖
// 已有出价后禁止取消，保护出价者
func (as *AuctionService) CancelAuction(auctionID, sellerID string) (*models.Auction, error) {
	var auction models.Auction
	if err := config.DB.First(&auction, "id = ?", auctionID).Error; err != nil {
		return nil, fmt.Errorf("auction %s: %w", auctionID, apperrors.ErrNotFound)
	}

	if auction.SellerID != sellerID {
		return nil, fmt.Errorf("auction %s belongs to another seller: %w", auctionID, apperrors.ErrUnauthorized)
	}
	if auction.Status != models.AuctionStatusActive {
		return nil, fmt.Errorf("auction %s is %s: %w", auctionID, auction.Status, apperrors.ErrAuctionNotActive)
	}
	if auction.TotalBids > 0 {
		return nil, fmt.Errorf("auction %s has %d bids: %w", auctionID, auction.TotalBids, apperrors.ErrHasBids)
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		// total_bids 条件防止校验与取消之间溜进一笔出价
		result := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ? AND total_bids = 0", auction.ID, models.AuctionStatusActive).
			Update("status", models.AuctionStatusCancelled)
		if result.Error != nil {
			return fmt.Errorf("failed to cancel auction: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("auction %s: %w", auction.ID, apperrors.ErrHasBids)
		}
		return models.TransitionBookStatus(tx, auction.BookID, models.BookStatusPending, models.BookStatusActive)
	})
	if err != nil {
		return nil, err
	}

	auction.Status = models.AuctionStatusCancelled
	go as.clearAuctionCache(auctionID)
	notifyEvent("auction_cancelled", map[string]interface{}{
		"auction_id": auction.ID,
		"book_id":    auction.BookID,
	})

	return &auction, nil
}

// SettleExpired 关闭所有已过截止时间但仍为 active 的拍卖
// 由外部定时任务调用，与手动结束走同一算法；
// 核心正确性不依赖它（PlaceBid 每次都重查时钟）
func (as *AuctionService) SettleExpired() (int, error) {
	now := as.clock.Now()

	var expired []models.Auction
	if err := config.DB.
		Where("status = ? AND end_time <= ?", models.AuctionStatusActive, now).
		Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("failed to list expired auctions: %w", err)
	}

	settled := 0
	for i := range expired {
		auction := &expired[i]
		if err := as.closeAuction(auction); err != nil {
			// 并发关闭导致的失败属正常，跳过即可
			if errors.Is(err, apperrors.ErrAuctionNotActive) {
				continue
			}
			return settled, err
		}
		settled++

		go as.clearAuctionCache(auction.ID)
		notifyEvent("auction_expired", map[string]interface{}{
			"auction_id":  auction.ID,
			"book_id":     auction.BookID,
			"current_bid": auction.CurrentBid,
		})
	}

	return settled, nil
}

// clearAuctionCache 清除拍卖缓存
func (as *AuctionService) clearAuctionCache(auctionID string) {
	if config.RedisClient == nil {
		return
	}
	config.RedisClient.Del(redisCtx, fmt.Sprintf("auction:%s", auctionID))
}
