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

func newTestTransactionService(fc *fakeClock) *TransactionService {
	return &TransactionService{clock: fc, policy: testPolicy()}
}

func TestCheckoutBuyNow(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 500)

	txn, err := svc.Checkout("buyer-1", &CheckoutRequest{
		Type:   models.TransactionTypeBuyNow,
		BookID: book.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusPendingPayment, txn.Status)
	assert.Equal(t, models.TransactionTypeBuyNow, txn.TransactionType)
	assert.Equal(t, int64(2000), txn.ItemPrice)
	assert.Equal(t, int64(500), txn.Shipping)
	assert.Equal(t, int64(140), txn.PlatformFee)
	assert.Equal(t, int64(2360), txn.SellerPayout)
	assert.Equal(t, int64(2500), txn.Total)

	assert.Equal(t, models.BookStatusSold, reloadBook(t, book.ID).Status)
}

func TestCheckoutBuyNowGuards(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	own := seedBook(t, "buyer-1", models.BookStatusActive, 2000, 0)
	_, err := svc.Checkout("buyer-1", &CheckoutRequest{Type: models.TransactionTypeBuyNow, BookID: own.ID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	locked := seedBook(t, "seller-1", models.BookStatusPending, 2000, 0)
	_, err = svc.Checkout("buyer-1", &CheckoutRequest{Type: models.TransactionTypeBuyNow, BookID: locked.ID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = svc.Checkout("buyer-1", &CheckoutRequest{Type: models.TransactionTypeBuyNow, BookID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckoutDoubleSettle(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 0)

	_, err := svc.Checkout("buyer-1", &CheckoutRequest{Type: models.TransactionTypeBuyNow, BookID: book.ID})
	require.NoError(t, err)

	// 第一次结算已把书置为 sold
	_, err = svc.Checkout("buyer-2", &CheckoutRequest{Type: models.TransactionTypeBuyNow, BookID: book.ID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

// seedAcceptedOffer 直接落库一条已接受的报价（书籍已锁定）
func seedAcceptedOffer(t *testing.T, fc *fakeClock, book *models.Book, buyerID string, amount int64, counter *int64) *models.Offer {
	t.Helper()

	now := fc.Now()
	offer := &models.Offer{
		BookID:             book.ID,
		BuyerID:            buyerID,
		SellerID:           book.SellerID,
		OfferAmount:        amount,
		Status:             models.OfferStatusAccepted,
		ExpiresAt:          now.Add(48 * time.Hour),
		CounterOfferAmount: counter,
		RespondedAt:        &now,
	}
	require.NoError(t, config.DB.Create(offer).Error)
	return offer
}

func TestCheckoutAcceptedOffer(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusPending, 2000, 500)
	offer := seedAcceptedOffer(t, fc, book, "buyer-1", 1500, nil)

	txn, err := svc.Checkout("buyer-1", &CheckoutRequest{
		Type:    models.TransactionTypeAcceptedOffer,
		OfferID: offer.ID,
	})
	require.NoError(t, err)

	// 成交价是报价金额而非标价
	assert.Equal(t, int64(1500), txn.ItemPrice)
	assert.Equal(t, int64(105), txn.PlatformFee) // 1500 * 7%
	assert.Equal(t, int64(1895), txn.SellerPayout)
	assert.Equal(t, int64(2000), txn.Total)

	assert.Equal(t, models.BookStatusSold, reloadBook(t, book.ID).Status)
}

func TestCheckoutAcceptedCounterUsesCounterAmount(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusPending, 2000, 0)
	counter := int64(1800)
	offer := seedAcceptedOffer(t, fc, book, "buyer-1", 1500, &counter)

	txn, err := svc.Checkout("buyer-1", &CheckoutRequest{
		Type:    models.TransactionTypeAcceptedOffer,
		OfferID: offer.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1800), txn.ItemPrice)
}

func TestCheckoutOfferGuards(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusPending, 2000, 0)
	offer := seedAcceptedOffer(t, fc, book, "buyer-1", 1500, nil)

	// 只有报价买家本人可以结算
	_, err := svc.Checkout("buyer-2", &CheckoutRequest{
		Type:    models.TransactionTypeAcceptedOffer,
		OfferID: offer.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// pending 报价不能结算
	pending := &models.Offer{
		BookID:      book.ID,
		BuyerID:     "buyer-3",
		SellerID:    "seller-1",
		OfferAmount: 1400,
		Status:      models.OfferStatusPending,
		ExpiresAt:   fc.Now().Add(48 * time.Hour),
	}
	require.NoError(t, config.DB.Create(pending).Error)

	_, err = svc.Checkout("buyer-3", &CheckoutRequest{
		Type:    models.TransactionTypeAcceptedOffer,
		OfferID: pending.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

// seedEndedAuction 直接落库一场已结束的拍卖（书籍已锁定）
func seedEndedAuction(t *testing.T, fc *fakeClock, book *models.Book, winner string, currentBid int64, reserve *int64) *models.Auction {
	t.Helper()

	auction := &models.Auction{
		BookID:            book.ID,
		SellerID:          book.SellerID,
		StartingBid:       500,
		CurrentBid:        currentBid,
		ReservePrice:      reserve,
		CurrentHighBidder: &winner,
		Status:            models.AuctionStatusEnded,
		StartTime:         fc.Now().Add(-48 * time.Hour),
		EndTime:           fc.Now().Add(-time.Hour),
		TotalBids:         3,
		UniqueBidders:     2,
	}
	require.NoError(t, config.DB.Create(auction).Error)
	return auction
}

func TestCheckoutAuctionWin(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusPending, 2000, 500)
	auction := seedEndedAuction(t, fc, book, "buyer-1", 700, nil)

	txn, err := svc.Checkout("buyer-1", &CheckoutRequest{
		Type:      models.TransactionTypeAuctionWin,
		AuctionID: auction.ID,
	})
	require.NoError(t, err)

	// 成交价是收盘最高出价
	assert.Equal(t, int64(700), txn.ItemPrice)
	assert.Equal(t, int64(49), txn.PlatformFee) // 700 * 7%
	assert.Equal(t, int64(1151), txn.SellerPayout)
	assert.Equal(t, int64(1200), txn.Total)

	assert.Equal(t, models.BookStatusSold, reloadBook(t, book.ID).Status)
}

func TestCheckoutAuctionGuards(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	book := seedBook(t, "seller-1", models.BookStatusPending, 2000, 0)
	auction := seedEndedAuction(t, fc, book, "buyer-1", 700, nil)

	// 只有收盘最高出价者可以结算
	_, err := svc.Checkout("buyer-2", &CheckoutRequest{
		Type:      models.TransactionTypeAuctionWin,
		AuctionID: auction.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// 保留价未达到的拍卖不能结算
	other := seedBook(t, "seller-2", models.BookStatusPending, 2000, 0)
	reserve := int64(1000)
	belowReserve := seedEndedAuction(t, fc, other, "buyer-1", 700, &reserve)

	_, err = svc.Checkout("buyer-1", &CheckoutRequest{
		Type:      models.TransactionTypeAuctionWin,
		AuctionID: belowReserve.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

// seedTransaction 经由结算路径创建一笔交易
func seedTransaction(t *testing.T, svc *TransactionService, buyerID string) *models.Transaction {
	t.Helper()

	book := seedBook(t, "seller-1", models.BookStatusActive, 2000, 500)
	txn, err := svc.Checkout(buyerID, &CheckoutRequest{
		Type:   models.TransactionTypeBuyNow,
		BookID: book.ID,
	})
	require.NoError(t, err)
	return txn
}

func TestTransactionLifecycle(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	txn := seedTransaction(t, svc, "buyer-1")

	// pending_payment -> paid
	paid, err := svc.MarkPaid(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	// paid -> shipped
	shipped, err := svc.UpdateTracking(txn.ID, "seller-1", &UpdateTrackingRequest{
		TrackingNumber:  "SF123456",
		TrackingCarrier: "SF Express",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusShipped, shipped.Status)
	assert.Equal(t, "SF123456", shipped.TrackingNumber)

	// shipped -> delivered
	delivered, err := svc.MarkDelivered(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusDelivered, delivered.Status)

	// delivered -> completed（买家验收）
	completed, err := svc.Complete(txn.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// 金额拆分全程未被动过
	assert.Equal(t, int64(140), completed.PlatformFee)
	assert.Equal(t, int64(2360), completed.SellerPayout)
}

func TestMilestoneIdempotent(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	txn := seedTransaction(t, svc, "buyer-1")

	first, err := svc.MarkPaid(txn.ID)
	require.NoError(t, err)
	firstPaidAt := *first.PaidAt

	// 支付回调重放是无操作，时间戳不变
	fc.Advance(time.Hour)
	replay, err := svc.MarkPaid(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, replay.Status)

	var stored models.Transaction
	require.NoError(t, config.DB.First(&stored, "id = ?", txn.ID).Error)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, firstPaidAt.Unix(), stored.PaidAt.Unix())
}

func TestMilestoneOrderEnforced(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	txn := seedTransaction(t, svc, "buyer-1")

	// 未发货不能签收
	_, err := svc.MarkDelivered(txn.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	// 未付款不能发货
	_, err = svc.UpdateTracking(txn.ID, "seller-1", &UpdateTrackingRequest{
		TrackingNumber:  "SF123456",
		TrackingCarrier: "SF Express",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	// 未签收不能验收
	_, err = svc.Complete(txn.ID, "buyer-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestUpdateTrackingRejectsWrongSeller(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	txn := seedTransaction(t, svc, "buyer-1")
	_, err := svc.MarkPaid(txn.ID)
	require.NoError(t, err)

	_, err = svc.UpdateTracking(txn.ID, "seller-2", &UpdateTrackingRequest{
		TrackingNumber:  "SF123456",
		TrackingCarrier: "SF Express",
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestDisputeAndRefund(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	txn := seedTransaction(t, svc, "buyer-1")
	_, err := svc.MarkPaid(txn.ID)
	require.NoError(t, err)
	_, err = svc.UpdateTracking(txn.ID, "seller-1", &UpdateTrackingRequest{
		TrackingNumber:  "SF123456",
		TrackingCarrier: "SF Express",
	})
	require.NoError(t, err)
	_, err = svc.MarkDelivered(txn.ID)
	require.NoError(t, err)

	// 只有买家可以发起争议
	_, err = svc.Dispute(txn.ID, "seller-1")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	disputed, err := svc.Dispute(txn.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusDisputed, disputed.Status)

	refunded, err := svc.Refund(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)
}

func TestCancelTransaction(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	txn := seedTransaction(t, svc, "buyer-1")

	// 第三方不能取消
	_, err := svc.Cancel(txn.ID, "stranger")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	cancelled, err := svc.Cancel(txn.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, cancelled.Status)

	// 发货后的交易不能取消
	other := seedTransaction(t, svc, "buyer-2")
	_, err = svc.MarkPaid(other.ID)
	require.NoError(t, err)
	_, err = svc.UpdateTracking(other.ID, "seller-1", &UpdateTrackingRequest{
		TrackingNumber:  "SF654321",
		TrackingCarrier: "SF Express",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(other.ID, "buyer-2")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestGetTransactionPartyOnly(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	txn := seedTransaction(t, svc, "buyer-1")

	got, err := svc.GetTransaction(txn.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)

	got, err = svc.GetTransaction(txn.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)

	_, err = svc.GetTransaction(txn.ID, "stranger")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGetTransactionsByRole(t *testing.T) {
	setupTestDB(t)
	fc := newFakeClock()
	svc := newTestTransactionService(fc)

	seedTransaction(t, svc, "buyer-1")
	seedTransaction(t, svc, "buyer-2")

	asBuyer, total, err := svc.GetTransactions("buyer-1", "buyer", "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, asBuyer, 1)

	asSeller, total, err := svc.GetTransactions("seller-1", "seller", "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, asSeller, 2)

	// 非当事方什么都看不到
	none, total, err := svc.GetTransactions("stranger", "all", "", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}
