package controllers

import (
	"time"

	"bookbid_go/services"
	"bookbid_go/utils"

	"github.com/gin-gonic/gin"
)

// AuctionController 拍卖控制器
type AuctionController struct {
	auctionService *services.AuctionService
}

// NewAuctionController 创建拍卖控制器实例
func NewAuctionController() *AuctionController {
	return &AuctionController{
		auctionService: services.NewAuctionService(),
	}
}

// PlaceBidRequest 出价请求
type PlaceBidRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// CreateAuction 创建拍卖
// @Summary 为自己的书籍创建拍卖
// @Tags auctions
// @Security Bearer
// @Router /api/auctions [post]
func (ac *AuctionController) CreateAuction(c *gin.Context) {
	sellerID := c.GetString("user_id")

	var req services.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	auction, err := ac.auctionService.CreateAuction(sellerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Created(c, auction)
}

// GetAuction 获取拍卖详情
// @Summary 获取拍卖详情
// @Tags auctions
// @Router /api/auctions/{id} [get]
func (ac *AuctionController) GetAuction(c *gin.Context) {
	auction, err := ac.auctionService.GetAuction(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, auction)
}

// PlaceBid 出价
// @Summary 对拍卖出价
// @Tags auctions
// @Security Bearer
// @Router /api/auctions/{id}/bids [post]
func (ac *AuctionController) PlaceBid(c *gin.Context) {
	bidderID := c.GetString("user_id")

	// 出价接口限流，防止脚本刷价
	if !utils.APIRateLimit(c, bidderID, 30, time.Minute) {
		utils.Error(c, utils.CodeError, "出价过于频繁，请稍后再试")
		return
	}

	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	bid, err := ac.auctionService.PlaceBid(c.Param("id"), bidderID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Created(c, bid)
}

// GetBidHistory 获取出价历史
// @Summary 分页获取拍卖的出价历史
// @Tags auctions
// @Router /api/auctions/{id}/bids [get]
func (ac *AuctionController) GetBidHistory(c *gin.Context) {
	page, limit := parsePagination(c)

	bids, total, err := ac.auctionService.GetBidHistory(c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Paginate(c, bids, total, page, limit)
}

// EndAuction 手动结束拍卖
// @Summary 卖家手动结束拍卖
// @Tags auctions
// @Security Bearer
// @Router /api/auctions/{id}/end [post]
func (ac *AuctionController) EndAuction(c *gin.Context) {
	auction, err := ac.auctionService.EndAuction(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, auction)
}

// CancelAuction 取消拍卖
// @Summary 卖家取消无人出价的拍卖
// @Tags auctions
// @Security Bearer
// @Router /api/auctions/{id}/cancel [post]
func (ac *AuctionController) CancelAuction(c *gin.Context) {
	auction, err := ac.auctionService.CancelAuction(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, auction)
}
