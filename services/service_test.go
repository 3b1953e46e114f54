package services

import (
	"testing"
	"time"

	"bookbid_go/config"
	"bookbid_go/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeClock 可手动推进的测试时钟
type fakeClock struct {
	now time.Time
}

func (fc *fakeClock) Now() time.Time {
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.now = fc.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// setupTestDB 用内存sqlite替换全局数据库连接
// 单连接保证 :memory: 数据库在整个测试期间存活
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Book{},
		&models.Auction{},
		&models.Bid{},
		&models.Offer{},
		&models.Transaction{},
	))

	prevDB := config.DB
	prevRedis := config.RedisClient
	config.DB = db
	config.RedisClient = nil
	t.Cleanup(func() {
		config.DB = prevDB
		config.RedisClient = prevRedis
		sqlDB.Close()
	})
}

// testPolicy 固定的测试交易政策
func testPolicy() *config.TradePolicy {
	return &config.TradePolicy{
		Fee: config.FeePolicy{
			FeeRateBps:    700,
			FeeOnShipping: false,
		},
		MinBidIncrement:    100,
		OfferTTL:           48 * time.Hour,
		AuctionSweepPeriod: time.Minute,
	}
}

// seedBook 创建一本测试书籍
func seedBook(t *testing.T, sellerID, status string, priceCents, shippingCents int64) *models.Book {
	t.Helper()

	book := &models.Book{
		Title:         "The Go Programming Language",
		Author:        "Donovan & Kernighan",
		Condition:     "good",
		PriceCents:    priceCents,
		ShippingCents: shippingCents,
		SellerID:      sellerID,
		Status:        status,
	}
	require.NoError(t, config.DB.Create(book).Error)
	return book
}

// reloadBook 重新读取书籍
func reloadBook(t *testing.T, bookID string) *models.Book {
	t.Helper()

	var book models.Book
	require.NoError(t, config.DB.First(&book, "id = ?", bookID).Error)
	return &book
}
