package services

import (
	"bookbid_go/config"
)

// FeeBreakdown 一笔交易的费用拆分快照
// 所有金额均为最小货币单位（分）
type FeeBreakdown struct {
	ItemPrice    int64 `json:"item_price"`
	Shipping     int64 `json:"shipping"`
	PlatformFee  int64 `json:"platform_fee"`
	SellerPayout int64 `json:"seller_payout"`
	Total        int64 `json:"total"`
}

// ComputeFees 计算平台费与卖家应得款（纯函数，无I/O）
// 默认政策下平台费只对商品价抽成，运费全额转给卖家
// 守恒不变量：SellerPayout + PlatformFee == ItemPrice + Shipping
func ComputeFees(itemPrice, shipping int64, policy *config.FeePolicy) FeeBreakdown {
	base := itemPrice
	if policy.FeeOnShipping {
		base += shipping
	}

	fee := roundHalfUpBps(base, policy.FeeRateBps)
	total := itemPrice + shipping

	return FeeBreakdown{
		ItemPrice:    itemPrice,
		Shipping:     shipping,
		PlatformFee:  fee,
		SellerPayout: total - fee,
		Total:        total,
	}
}

// roundHalfUpBps 按万分比费率计算金额，四舍五入（half-up）
// 全程整数运算，这里是唯一发生舍入的地方
func roundHalfUpBps(amount, rateBps int64) int64 {
	return (amount*rateBps + 5000) / 10000
}
