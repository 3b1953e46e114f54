package controllers

import (
	"bookbid_go/services"
	"bookbid_go/utils"

	"github.com/gin-gonic/gin"
)

// OfferController 报价控制器
type OfferController struct {
	offerService *services.OfferService
}

// NewOfferController 创建报价控制器实例
func NewOfferController() *OfferController {
	return &OfferController{
		offerService: services.NewOfferService(),
	}
}

// CreateOffer 创建报价
// @Summary 买家对在售书籍报价
// @Tags offers
// @Security Bearer
// @Router /api/offers [post]
func (oc *OfferController) CreateOffer(c *gin.Context) {
	buyerID := c.GetString("user_id")

	var req services.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	offer, err := oc.offerService.CreateOffer(buyerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Created(c, offer)
}

// GetOffers 查询报价列表
// @Summary 按买家/卖家/书籍/状态筛选报价
// @Tags offers
// @Security Bearer
// @Router /api/offers [get]
func (oc *OfferController) GetOffers(c *gin.Context) {
	userID := c.GetString("user_id")
	page, limit := parsePagination(c)

	// 默认查自己的报价：role=seller 查收到的，否则查发出的
	filter := &services.OfferFilter{
		BookID: c.Query("book_id"),
		Status: c.Query("status"),
	}
	if c.DefaultQuery("role", "buyer") == "seller" {
		filter.SellerID = userID
	} else {
		filter.BuyerID = userID
	}

	offers, total, err := oc.offerService.GetOffers(filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Paginate(c, offers, total, page, limit)
}

// GetOffer 获取报价详情
// @Summary 获取报价详情（仅买卖双方）
// @Tags offers
// @Security Bearer
// @Router /api/offers/{id} [get]
func (oc *OfferController) GetOffer(c *gin.Context) {
	offer, err := oc.offerService.GetOffer(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, offer)
}

// AcceptOffer 接受报价
// @Summary 卖家接受报价
// @Tags offers
// @Security Bearer
// @Router /api/offers/{id}/accept [post]
func (oc *OfferController) AcceptOffer(c *gin.Context) {
	offer, err := oc.offerService.AcceptOffer(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, offer)
}

// RejectOffer 拒绝报价
// @Summary 卖家拒绝报价
// @Tags offers
// @Security Bearer
// @Router /api/offers/{id}/reject [post]
func (oc *OfferController) RejectOffer(c *gin.Context) {
	offer, err := oc.offerService.RejectOffer(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, offer)
}

// CounterOffer 还价
// @Summary 卖家对报价还价
// @Tags offers
// @Security Bearer
// @Router /api/offers/{id}/counter [post]
func (oc *OfferController) CounterOffer(c *gin.Context) {
	var req services.CounterOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	offer, err := oc.offerService.CounterOffer(c.Param("id"), c.GetString("user_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, offer)
}

// RespondToCounter 买家答复还价
// @Summary 买家接受或拒绝卖家的还价
// @Tags offers
// @Security Bearer
// @Router /api/offers/{id}/respond [post]
func (oc *OfferController) RespondToCounter(c *gin.Context) {
	var req services.RespondCounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	offer, err := oc.offerService.RespondToCounter(c.Param("id"), c.GetString("user_id"), req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, offer)
}
