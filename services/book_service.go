package services

import (
	"encoding/json"
	"fmt"
	"time"

	"bookbid_go/apperrors"
	"bookbid_go/config"
	"bookbid_go/models"
)

// BookService 书籍服务
type BookService struct{}

// NewBookService 创建书籍服务实例
func NewBookService() *BookService {
	return &BookService{}
}

// CreateBookRequest 创建书籍请求
type CreateBookRequest struct {
	Title         string `json:"title" binding:"required,max=200"`
	Author        string `json:"author" binding:"required,max=100"`
	Description   string `json:"description"`
	Condition     string `json:"condition" binding:"required,max=20"`
	PriceCents    int64  `json:"price_cents" binding:"required,gt=0"`
	ShippingCents int64  `json:"shipping_cents" binding:"gte=0"`
}

// UpdateBookRequest 更新书籍请求
type UpdateBookRequest struct {
	Title         string `json:"title" binding:"omitempty,max=200"`
	Author        string `json:"author" binding:"omitempty,max=100"`
	Description   string `json:"description"`
	Condition     string `json:"condition" binding:"omitempty,max=20"`
	PriceCents    int64  `json:"price_cents" binding:"omitempty,gt=0"`
	ShippingCents int64  `json:"shipping_cents" binding:"omitempty,gte=0"`
}

// CreateBook 创建书籍（初始为草稿状态）
func (bs *BookService) CreateBook(sellerID string, req *CreateBookRequest) (*models.Book, error) {
	book := &models.Book{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		Condition:     req.Condition,
		PriceCents:    req.PriceCents,
		ShippingCents: req.ShippingCents,
		SellerID:      sellerID,
		Status:        models.BookStatusDraft,
	}

	if err := config.DB.Create(book).Error; err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	notifyEvent("book_created", map[string]interface{}{
		"book_id":   book.ID,
		"title":     book.Title,
		"seller_id": sellerID,
	})

	return book, nil
}

// loadOwnedBook 加载书籍并校验属主
func (bs *BookService) loadOwnedBook(bookID, sellerID string) (*models.Book, error) {
	var book models.Book
	if err := config.DB.First(&book, "id = ?", bookID).Error; err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, apperrors.ErrNotFound)
	}
	if book.SellerID != sellerID {
		return nil, fmt.Errorf("book %s belongs to another seller: %w", bookID, apperrors.ErrUnauthorized)
	}
	return &book, nil
}

// UpdateBook 更新书籍
// 锁定（pending）或已售的书不可修改定价
func (bs *BookService) UpdateBook(sellerID, bookID string, req *UpdateBookRequest) (*models.Book, error) {
	book, err := bs.loadOwnedBook(bookID, sellerID)
	if err != nil {
		return nil, err
	}

	if book.Status != models.BookStatusDraft && book.Status != models.BookStatusActive {
		return nil, fmt.Errorf("book %s is %s and cannot be edited: %w", bookID, book.Status, apperrors.ErrInvalidState)
	}

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Author != "" {
		updates["author"] = req.Author
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Condition != "" {
		updates["condition"] = req.Condition
	}
	if req.PriceCents > 0 {
		updates["price_cents"] = req.PriceCents
	}
	if req.ShippingCents > 0 {
		updates["shipping_cents"] = req.ShippingCents
	}

	if len(updates) > 0 {
		if err := config.DB.Model(book).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update book: %w", err)
		}
	}

	if err := config.DB.First(book, "id = ?", bookID).Error; err != nil {
		return nil, err
	}

	go bs.clearBookCache(bookID)
	return book, nil
}

// PublishBook 上架：draft -> active
func (bs *BookService) PublishBook(sellerID, bookID string) (*models.Book, error) {
	return bs.transition(sellerID, bookID, models.BookStatusActive)
}

// RemoveBook 下架：draft/active -> removed
// 被进行中的拍卖/报价/交易引用的书不允许下架（pending 不在转移表内）
func (bs *BookService) RemoveBook(sellerID, bookID string) (*models.Book, error) {
	return bs.transition(sellerID, bookID, models.BookStatusRemoved)
}

// transition 属主发起的书籍状态转移
func (bs *BookService) transition(sellerID, bookID, target string) (*models.Book, error) {
	book, err := bs.loadOwnedBook(bookID, sellerID)
	if err != nil {
		return nil, err
	}

	if err := models.TransitionBookStatus(config.DB, bookID, book.Status, target); err != nil {
		return nil, err
	}

	book.Status = target
	go bs.clearBookCache(bookID)
	return book, nil
}

// GetBook 获取书籍详情
func (bs *BookService) GetBook(bookID string) (*models.Book, error) {
	// 1. 尝试从Redis缓存获取
	cacheKey := fmt.Sprintf("book:%s", bookID)
	if config.RedisClient != nil {
		cached, err := config.RedisClient.Get(redisCtx, cacheKey).Result()
		if err == nil {
			var book models.Book
			if json.Unmarshal([]byte(cached), &book) == nil {
				return &book, nil
			}
		}
	}

	// 2. 从数据库查询
	var book models.Book
	if err := config.DB.Preload("Seller").First(&book, "id = ?", bookID).Error; err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, apperrors.ErrNotFound)
	}

	// 3. 异步缓存到Redis
	go func() {
		if config.RedisClient != nil {
			data, _ := json.Marshal(book)
			config.RedisClient.Set(redisCtx, cacheKey, data, 10*time.Minute)
		}
	}()

	return &book, nil
}

// BookFilter 书籍查询条件
type BookFilter struct {
	SellerID string
	Status   string
}

// GetBooks 获取书籍列表
// 不指定状态时只返回在售的书
func (bs *BookService) GetBooks(filter *BookFilter, page, limit int) ([]models.Book, int64, error) {
	query := config.DB.Model(&models.Book{})

	if filter.SellerID != "" {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else {
		query = query.Where("status = ?", models.BookStatusActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	var books []models.Book
	if err := query.
		Preload("Seller").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&books).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get books: %w", err)
	}

	return books, total, nil
}

// clearBookCache 清除书籍缓存
func (bs *BookService) clearBookCache(bookID string) {
	if config.RedisClient == nil {
		return
	}
	config.RedisClient.Del(redisCtx, fmt.Sprintf("book:%s", bookID))
}
