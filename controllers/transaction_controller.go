package controllers

import (
	"bookbid_go/services"
	"bookbid_go/utils"

	"github.com/gin-gonic/gin"
)

// TransactionController 交易控制器
type TransactionController struct {
	transactionService *services.TransactionService
}

// NewTransactionController 创建交易控制器实例
func NewTransactionController() *TransactionController {
	return &TransactionController{
		transactionService: services.NewTransactionService(),
	}
}

// Checkout 结算
// @Summary 买家结算（直接购买/已接受报价/拍卖胜出）
// @Tags transactions
// @Security Bearer
// @Router /api/transactions/checkout [post]
func (tc *TransactionController) Checkout(c *gin.Context) {
	buyerID := c.GetString("user_id")

	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	txn, err := tc.transactionService.Checkout(buyerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Created(c, txn)
}

// GetTransactions 查询交易列表
// @Summary 查询自己的交易（role=buyer/seller/all）
// @Tags transactions
// @Security Bearer
// @Router /api/transactions [get]
func (tc *TransactionController) GetTransactions(c *gin.Context) {
	userID := c.GetString("user_id")
	page, limit := parsePagination(c)

	txns, total, err := tc.transactionService.GetTransactions(
		userID,
		c.DefaultQuery("role", "all"),
		c.Query("status"),
		page, limit,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Paginate(c, txns, total, page, limit)
}

// GetTransaction 获取交易详情
// @Summary 获取交易详情（仅买卖双方）
// @Tags transactions
// @Security Bearer
// @Router /api/transactions/{id} [get]
func (tc *TransactionController) GetTransaction(c *gin.Context) {
	txn, err := tc.transactionService.GetTransaction(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}

// UpdateTracking 填写物流信息
// @Summary 卖家发货并填写物流单号
// @Tags transactions
// @Security Bearer
// @Router /api/transactions/{id}/tracking [put]
func (tc *TransactionController) UpdateTracking(c *gin.Context) {
	var req services.UpdateTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	txn, err := tc.transactionService.UpdateTracking(c.Param("id"), c.GetString("user_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}

// MarkPaid 支付回调
// @Summary 支付完成里程碑（支付网关回调）
// @Tags transactions
// @Router /api/transactions/{id}/paid [post]
func (tc *TransactionController) MarkPaid(c *gin.Context) {
	txn, err := tc.transactionService.MarkPaid(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}

// MarkDelivered 物流回调
// @Summary 签收里程碑（物流回调）
// @Tags transactions
// @Router /api/transactions/{id}/delivered [post]
func (tc *TransactionController) MarkDelivered(c *gin.Context) {
	txn, err := tc.transactionService.MarkDelivered(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}

// Complete 买家验收
// @Summary 买家确认收货，交易完成
// @Tags transactions
// @Security Bearer
// @Router /api/transactions/{id}/complete [post]
func (tc *TransactionController) Complete(c *gin.Context) {
	txn, err := tc.transactionService.Complete(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}

// Dispute 发起争议
// @Summary 买家对已签收的交易发起争议
// @Tags transactions
// @Security Bearer
// @Router /api/transactions/{id}/dispute [post]
func (tc *TransactionController) Dispute(c *gin.Context) {
	txn, err := tc.transactionService.Dispute(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}

// Cancel 取消交易
// @Summary 买卖双方在早期状态取消交易
// @Tags transactions
// @Security Bearer
// @Router /api/transactions/{id}/cancel [post]
func (tc *TransactionController) Cancel(c *gin.Context) {
	txn, err := tc.transactionService.Cancel(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}

// Refund 退款回调
// @Summary 退款里程碑（支付网关/争议处理回调）
// @Tags transactions
// @Router /api/transactions/{id}/refund [post]
func (tc *TransactionController) Refund(c *gin.Context) {
	txn, err := tc.transactionService.Refund(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, txn)
}
