package controllers

import (
	"bookbid_go/services"
	"bookbid_go/utils"

	"github.com/gin-gonic/gin"
)

// BookController 书籍控制器
type BookController struct {
	bookService *services.BookService
}

// NewBookController 创建书籍控制器实例
func NewBookController() *BookController {
	return &BookController{
		bookService: services.NewBookService(),
	}
}

// CreateBook 创建书籍
// @Summary 创建书籍（草稿）
// @Tags books
// @Security Bearer
// @Router /api/books [post]
func (bc *BookController) CreateBook(c *gin.Context) {
	sellerID := c.GetString("user_id")

	var req services.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	book, err := bc.bookService.CreateBook(sellerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Created(c, book)
}

// GetBook 获取书籍详情
// @Summary 获取书籍详情
// @Tags books
// @Router /api/books/{id} [get]
func (bc *BookController) GetBook(c *gin.Context) {
	book, err := bc.bookService.GetBook(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, book)
}

// GetBooks 获取书籍列表
// @Summary 分页获取书籍列表
// @Tags books
// @Router /api/books [get]
func (bc *BookController) GetBooks(c *gin.Context) {
	page, limit := parsePagination(c)

	filter := &services.BookFilter{
		SellerID: c.Query("seller_id"),
		Status:   c.Query("status"),
	}

	books, total, err := bc.bookService.GetBooks(filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Paginate(c, books, total, page, limit)
}

// UpdateBook 更新书籍
// @Summary 更新自己的书籍
// @Tags books
// @Security Bearer
// @Router /api/books/{id} [put]
func (bc *BookController) UpdateBook(c *gin.Context) {
	var req services.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	book, err := bc.bookService.UpdateBook(c.GetString("user_id"), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, book)
}

// PublishBook 上架书籍
// @Summary 将草稿书籍上架
// @Tags books
// @Security Bearer
// @Router /api/books/{id}/publish [post]
func (bc *BookController) PublishBook(c *gin.Context) {
	book, err := bc.bookService.PublishBook(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, book)
}

// RemoveBook 下架书籍
// @Summary 下架自己的书籍
// @Tags books
// @Security Bearer
// @Router /api/books/{id} [delete]
func (bc *BookController) RemoveBook(c *gin.Context) {
	book, err := bc.bookService.RemoveBook(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "书籍已下架", book)
}
