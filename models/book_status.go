package models

import (
	"fmt"

	"gorm.io/gorm"

	"bookbid_go/apperrors"
)

// bookStatusFlow 书籍状态机
// 书籍状态是拍卖/报价/交易三个引擎共享的唯一可变字段，
// 合法转移表只在这里维护，引擎不得各自定义
var bookStatusFlow = map[string][]string{
	BookStatusDraft:   {BookStatusActive, BookStatusPending, BookStatusRemoved},
	BookStatusActive:  {BookStatusPending, BookStatusSold, BookStatusRemoved},
	BookStatusPending: {BookStatusActive, BookStatusSold},
	BookStatusSold:    {},
	BookStatusRemoved: {},
}

// CanTransitionBook 判断书籍状态转移是否合法
func CanTransitionBook(from, to string) bool {
	for _, next := range bookStatusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionBookStatus 在事务内执行书籍状态转移
// 使用条件更新（WHERE status = from）保证同行串行：
// 两个买家同时锁定同一本书时，只有一个更新命中，另一个收到 Conflict 重试
func TransitionBookStatus(tx *gorm.DB, bookID, from, to string) error {
	if !CanTransitionBook(from, to) {
		return fmt.Errorf("book %s: transition %s -> %s: %w", bookID, from, to, apperrors.ErrInvalidState)
	}

	result := tx.Model(&Book{}).
		Where("id = ? AND status = ?", bookID, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update book status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("book %s: status changed concurrently: %w", bookID, apperrors.ErrConflict)
	}
	return nil
}
