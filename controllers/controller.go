package controllers

import (
	"errors"
	"strconv"

	"bookbid_go/apperrors"
	"bookbid_go/utils"

	"github.com/gin-gonic/gin"
)

// respondError 将服务层错误映射为带明确消息的响应
// 每种失败都有可区分的消息："出价过低"、"拍卖已结束"、"不是你的拍卖"
// 绝不吞成笼统的"操作失败"
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, apperrors.ErrUnauthorized):
		utils.Error(c, utils.CodeForbidden, err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		utils.Error(c, utils.CodeConflict, err.Error())
	case errors.Is(err, apperrors.ErrExpired):
		utils.Error(c, utils.CodeGone, err.Error())
	case errors.Is(err, apperrors.ErrAuctionEnded),
		errors.Is(err, apperrors.ErrAuctionNotActive),
		errors.Is(err, apperrors.ErrInvalidState):
		utils.Error(c, utils.CodeInvalidState, err.Error())
	case errors.Is(err, apperrors.ErrBidTooLow),
		errors.Is(err, apperrors.ErrSelfBid),
		errors.Is(err, apperrors.ErrHasBids),
		errors.Is(err, apperrors.ErrDuplicateAuction),
		errors.Is(err, apperrors.ErrValidation):
		utils.Error(c, utils.CodeValidationError, err.Error())
	default:
		utils.InternalError(c, "")
	}
}

// bindError 绑定/验证失败的响应
func bindError(c *gin.Context, err error) {
	utils.Error(c, utils.CodeValidationError, utils.FormatBindingError(err))
}

// parsePagination 解析分页参数
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
