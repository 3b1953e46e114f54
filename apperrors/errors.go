package apperrors

import "errors"

// 通用业务错误
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("caller is not authorized for this resource")
	ErrInvalidState = errors.New("operation not valid for current status")
	ErrValidation   = errors.New("invalid input")
	ErrConflict     = errors.New("concurrent update conflict, please retry")
	ErrExpired      = errors.New("time window has passed")
)

// 拍卖相关错误
var (
	ErrDuplicateAuction = errors.New("an auction already exists for this book")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAuctionEnded     = errors.New("auction has already ended")
	ErrSelfBid          = errors.New("sellers cannot bid on their own auction")
	ErrBidTooLow        = errors.New("bid amount too low")
	ErrHasBids          = errors.New("auction cannot be cancelled after bidding has started")
)
