package services

import (
	"testing"
	"time"

	"bookbid_go/apperrors"
	"bookbid_go/config"
	"bookbid_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuctionService(fc *fakeClock) *AuctionService {
	return &AuctionService{clock: fc, policy: testPolicy()}
}

func TestCreateAuction(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 500)

	auction, err := svc.CreateAuction("seller-1", &CreateAuctionRequest{
		BookID:      book.ID,
		StartingBid: 500,
		EndTime:     fc.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, models.AuctionStatusActive, auction.Status)
	assert.Equal(t, int64(500), auction.CurrentBid)
	assert.Nil(t, auction.CurrentHighBidder)
	assert.Equal(t, 0, auction.TotalBids)

	// 开拍后书籍被锁定
	assert.Equal(t, models.BookStatusPending, reloadBook(t, book.ID).Status)
}

func TestCreateAuctionRejectsWrongSeller(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 0)

	_, err := svc.CreateAuction("intruder", &CreateAuctionRequest{
		BookID:      book.ID,
		StartingBid: 500,
		EndTime:     fc.Now().Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCreateAuctionRejectsSoldBook(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusSold, 2000, 0)

	_, err := svc.CreateAuction("seller-1", &CreateAuctionRequest{
		BookID:      book.ID,
		StartingBid: 500,
		EndTime:     fc.Now().Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCreateAuctionRejectsPastEndTime(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 0)

	_, err := svc.CreateAuction("seller-1", &CreateAuctionRequest{
		BookID:      book.ID,
		StartingBid: 500,
		EndTime:     fc.Now().Add(-time.Minute),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateAuctionRejectsDuplicate(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 0)

	req := &CreateAuctionRequest{
		BookID:      book.ID,
		StartingBid: 500,
		EndTime:     fc.Now().Add(24 * time.Hour),
	}
	_, err := svc.CreateAuction("seller-1", req)
	require.NoError(t, err)

	_, err = svc.CreateAuction("seller-1", req)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAuction)
}

// seedAuction 建一场进行中的拍卖，返回拍卖与书籍
func seedAuction(t *testing.T, svc *AuctionService, fc *fakeClock, sellerID string, startingBid int64, reserve *int64) (*models.Auction, *models.Book) {
	t.Helper()

	book := seedBook(t, sellerID, models.BookStatusActive, 2000, 500)
	auction, err := svc.CreateAuction(sellerID, &CreateAuctionRequest{
		BookID:       book.ID,
		StartingBid:  startingBid,
		ReservePrice: reserve,
		EndTime:      fc.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return auction, book
}

func TestPlaceBidMonotonic(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)

	// 首笔出价必须满足 起拍价 + 最小加价
	_, err := svc.PlaceBid(auction.ID, "buyer-a", 550)
	assert.ErrorIs(t, err, apperrors.ErrBidTooLow)

	bid, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	require.NoError(t, err)
	assert.Equal(t, int64(600), bid.Amount)

	// 低于 600+100 的出价被拒
	_, err = svc.PlaceBid(auction.ID, "buyer-b", 650)
	assert.ErrorIs(t, err, apperrors.ErrBidTooLow)

	_, err = svc.PlaceBid(auction.ID, "buyer-b", 700)
	require.NoError(t, err)

	var reloaded models.Auction
	require.NoError(t, config.DB.First(&reloaded, "id = ?", auction.ID).Error)
	assert.Equal(t, int64(700), reloaded.CurrentBid)
	require.NotNil(t, reloaded.CurrentHighBidder)
	assert.Equal(t, "buyer-b", *reloaded.CurrentHighBidder)
	assert.Equal(t, 2, reloaded.TotalBids)
	assert.Equal(t, 2, reloaded.UniqueBidders)
}

func TestPlaceBidCountsUniqueBiddersOnce(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	require.NoError(t, err)
	_, err = svc.PlaceBid(auction.ID, "buyer-b", 700)
	require.NoError(t, err)
	_, err = svc.PlaceBid(auction.ID, "buyer-a", 800)
	require.NoError(t, err)

	var reloaded models.Auction
	require.NoError(t, config.DB.First(&reloaded, "id = ?", auction.ID).Error)
	assert.Equal(t, 3, reloaded.TotalBids)
	assert.Equal(t, 2, reloaded.UniqueBidders)
}

func TestPlaceBidRejectsSeller(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)

	_, err := svc.PlaceBid(auction.ID, "seller-1", 600)
	assert.ErrorIs(t, err, apperrors.ErrSelfBid)
}

func TestPlaceBidAfterDeadline(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)

	// 状态仍是 active（清扫任务没跑过），但墙上时钟已过截止
	fc.Advance(25 * time.Hour)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	assert.ErrorIs(t, err, apperrors.ErrAuctionEnded)
}

func TestApplyBidStaleSnapshotConflicts(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)

	// 两个并发出价者读到同一快照
	var stale models.Auction
	require.NoError(t, config.DB.First(&stale, "id = ?", auction.ID).Error)

	_, err := svc.applyBid(&stale, "buyer-a", 600)
	require.NoError(t, err)

	// 落败方基于过时的 current_bid 落库失败
	_, err = svc.applyBid(&stale, "buyer-b", 650)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// 数据库里只有胜出的一笔
	var reloaded models.Auction
	require.NoError(t, config.DB.First(&reloaded, "id = ?", auction.ID).Error)
	assert.Equal(t, int64(600), reloaded.CurrentBid)
	assert.Equal(t, 1, reloaded.TotalBids)
}

func TestGetBidHistory(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)

	for i, amount := range []int64{600, 700, 800} {
		bidder := []string{"buyer-a", "buyer-b", "buyer-a"}[i]
		fc.Advance(time.Minute)
		_, err := svc.PlaceBid(auction.ID, bidder, amount)
		require.NoError(t, err)
	}

	bids, total, err := svc.GetBidHistory(auction.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, bids, 3)

	// 最新在前
	assert.Equal(t, int64(800), bids[0].Amount)
	assert.Equal(t, int64(600), bids[2].Amount)
}

func TestEndAuctionWithWinner(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, book := seedAuction(t, svc, fc, "seller-1", 500, nil)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	require.NoError(t, err)
	_, err = svc.PlaceBid(auction.ID, "buyer-b", 700)
	require.NoError(t, err)

	ended, err := svc.EndAuction(auction.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusEnded, ended.Status)

	// 成交出价被回填
	var winning models.Bid
	require.NoError(t, config.DB.First(&winning, "auction_id = ? AND is_winning_bid = ?", auction.ID, true).Error)
	assert.Equal(t, "buyer-b", winning.BidderID)
	assert.Equal(t, int64(700), winning.Amount)

	// 书籍保持 pending 等待胜者结算
	assert.Equal(t, models.BookStatusPending, reloadBook(t, book.ID).Status)
}

func TestEndAuctionNoBidsRelists(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, book := seedAuction(t, svc, fc, "seller-1", 500, nil)

	ended, err := svc.EndAuction(auction.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusEnded, ended.Status)

	// 流拍，书籍重新上架
	assert.Equal(t, models.BookStatusActive, reloadBook(t, book.ID).Status)
}

func TestEndAuctionReserveNotMetRelists(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	reserve := int64(1000)
	auction, book := seedAuction(t, svc, fc, "seller-1", 500, &reserve)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	require.NoError(t, err)

	_, err = svc.EndAuction(auction.ID, "seller-1")
	require.NoError(t, err)

	// 最高出价低于保留价，不成交
	assert.Equal(t, models.BookStatusActive, reloadBook(t, book.ID).Status)
}

func TestEndAuctionReserveMet(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	reserve := int64(1000)
	auction, book := seedAuction(t, svc, fc, "seller-1", 500, &reserve)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 1200)
	require.NoError(t, err)

	_, err = svc.EndAuction(auction.ID, "seller-1")
	require.NoError(t, err)

	assert.Equal(t, models.BookStatusPending, reloadBook(t, book.ID).Status)
}

func TestCreateAuctionSurfacesLookupFailure(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 0)

	// 查重失败不能被当成"没有拍卖"而继续落库
	require.NoError(t, config.DB.Migrator().DropTable(&models.Auction{}))

	_, err := svc.CreateAuction("seller-1", &CreateAuctionRequest{
		BookID:      book.ID,
		StartingBid: 500,
		EndTime:     fc.Now().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrDuplicateAuction)
	assert.ErrorContains(t, err, "failed to check existing auction")
}

func TestCloseAuctionDecidesFromFreshRow(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	reserve := int64(650)
	auction, book := seedAuction(t, svc, fc, "seller-1", 500, &reserve)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	require.NoError(t, err)

	// 手动结束的调用者此刻拿到快照：最高价 600，保留价未达
	var stale models.Auction
	require.NoError(t, config.DB.First(&stale, "id = ?", auction.ID).Error)

	// 快照与关闭之间又落进一笔越过保留价的出价
	fc.Advance(time.Minute)
	_, err = svc.PlaceBid(auction.ID, "buyer-b", 700)
	require.NoError(t, err)

	require.NoError(t, svc.closeAuction(&stale))

	// 胜者判定基于行内最新数据，成交出价是 buyer-b 的 700
	var winning models.Bid
	require.NoError(t, config.DB.First(&winning, "auction_id = ? AND is_winning_bid = ?", auction.ID, true).Error)
	assert.Equal(t, "buyer-b", winning.BidderID)
	assert.Equal(t, int64(700), winning.Amount)

	// 保留价已被最后一笔越过，书籍保持 pending 等待胜者结算
	assert.Equal(t, models.BookStatusPending, reloadBook(t, book.ID).Status)

	// 调用者的快照被刷新，后续通知携带的也是最新成交价
	assert.Equal(t, int64(700), stale.CurrentBid)
	assert.True(t, stale.ReserveMet())
}

func TestEndAuctionTwice(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)

	_, err := svc.EndAuction(auction.ID, "seller-1")
	require.NoError(t, err)

	_, err = svc.EndAuction(auction.ID, "seller-1")
	assert.ErrorIs(t, err, apperrors.ErrAuctionNotActive)
}

func TestCancelAuctionWithoutBids(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, book := seedAuction(t, svc, fc, "seller-1", 500, nil)

	cancelled, err := svc.CancelAuction(auction.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusCancelled, cancelled.Status)
	assert.Equal(t, models.BookStatusActive, reloadBook(t, book.ID).Status)
}

func TestCancelAuctionWithBids(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	auction, book := seedAuction(t, svc, fc, "seller-1", 500, nil)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	require.NoError(t, err)

	_, err = svc.CancelAuction(auction.ID, "seller-1")
	assert.ErrorIs(t, err, apperrors.ErrHasBids)

	// 拍卖与书籍都未被动过
	var reloaded models.Auction
	require.NoError(t, config.DB.First(&reloaded, "id = ?", auction.ID).Error)
	assert.Equal(t, models.AuctionStatusActive, reloaded.Status)
	assert.Equal(t, models.BookStatusPending, reloadBook(t, book.ID).Status)
}

func TestAuctionRoundWithSmallIncrement(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	policy := testPolicy()
	policy.MinBidIncrement = 50
	svc := &AuctionService{clock: fc, policy: policy}

	// 起拍 500，加价幅度 50：600 和 650 都是合法出价
	auction, book := seedAuction(t, svc, fc, "seller-1", 500, nil)

	_, err := svc.PlaceBid(auction.ID, "buyer-a", 600)
	require.NoError(t, err)
	fc.Advance(time.Minute)
	_, err = svc.PlaceBid(auction.ID, "buyer-b", 650)
	require.NoError(t, err)

	_, err = svc.EndAuction(auction.ID, "seller-1")
	require.NoError(t, err)

	var winning models.Bid
	require.NoError(t, config.DB.First(&winning, "auction_id = ? AND is_winning_bid = ?", auction.ID, true).Error)
	assert.Equal(t, "buyer-b", winning.BidderID)
	assert.Equal(t, int64(650), winning.Amount)

	assert.Equal(t, models.BookStatusPending, reloadBook(t, book.ID).Status)
}

func TestSettleExpired(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestAuctionService(fc)

	first, _ := seedAuction(t, svc, fc, "seller-1", 500, nil)
	second, _ := seedAuction(t, svc, fc, "seller-2", 800, nil)

	_, err := svc.PlaceBid(first.ID, "buyer-a", 600)
	require.NoError(t, err)

	fc.Advance(25 * time.Hour)

	settled, err := svc.SettleExpired()
	require.NoError(t, err)
	assert.Equal(t, 2, settled)

	var ended []models.Auction
	require.NoError(t, config.DB.Where("status = ?", models.AuctionStatusEnded).Find(&ended).Error)
	assert.Len(t, ended, 2)

	// 幂等：再跑一轮无事可做
	settled, err = svc.SettleExpired()
	require.NoError(t, err)
	assert.Zero(t, settled)
	_ = second
}
