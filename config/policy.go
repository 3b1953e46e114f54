package config

import "time"

// FeePolicy 平台费用政策
// 费率以万分比（basis points）表示，避免浮点；是否对运费抽成是部署可配项
type FeePolicy struct {
	FeeRateBps    int64 // 平台费率，700 = 7%
	FeeOnShipping bool  // 是否对运费抽成
}

// TradePolicy 交易政策
type TradePolicy struct {
	Fee                FeePolicy
	MinBidIncrement    int64         // 最小加价幅度（分）
	OfferTTL           time.Duration // 报价有效期
	AuctionSweepPeriod time.Duration // 过期拍卖清扫周期
}

// GetTradePolicy 从环境变量获取交易政策
func GetTradePolicy() *TradePolicy {
	return &TradePolicy{
		Fee: FeePolicy{
			FeeRateBps:    int64(GetEnvInt("FEE_RATE_BPS", 700)),
			FeeOnShipping: GetEnvBool("FEE_ON_SHIPPING", false),
		},
		MinBidIncrement:    int64(GetEnvInt("MIN_BID_INCREMENT_CENTS", 100)),
		OfferTTL:           time.Duration(GetEnvInt("OFFER_TTL_HOURS", 48)) * time.Hour,
		AuctionSweepPeriod: time.Duration(GetEnvInt("AUCTION_SWEEP_SECONDS", 60)) * time.Second,
	}
}
