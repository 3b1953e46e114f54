package routes

import (
	"bookbid_go/controllers"
	"bookbid_go/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine) {
	// 应用全局中间件
	r.Use(middleware.CORS())
	r.Use(middleware.Logger())

	api := r.Group("/api")
	{
		// ====== 认证路由 (无需认证) ======
		auth := api.Group("/auth")
		{
			authController := controllers.NewAuthController()
			auth.POST("/register", authController.Register)
			auth.POST("/login", authController.Login)
		}

		// ====== 书籍路由 ======
		books := api.Group("/books")
		{
			bookController := controllers.NewBookController()
			books.GET("", bookController.GetBooks)
			books.GET("/:id", bookController.GetBook)
			books.POST("", middleware.AuthMiddleware(), bookController.CreateBook)
			books.PUT("/:id", middleware.AuthMiddleware(), bookController.UpdateBook)
			books.POST("/:id/publish", middleware.AuthMiddleware(), bookController.PublishBook)
			books.DELETE("/:id", middleware.AuthMiddleware(), bookController.RemoveBook)
		}

		// ====== 拍卖路由 ======
		auctions := api.Group("/auctions")
		{
			auctionController := controllers.NewAuctionController()
			auctions.GET("/:id", auctionController.GetAuction)
			auctions.GET("/:id/bids", auctionController.GetBidHistory)
			auctions.POST("", middleware.AuthMiddleware(), auctionController.CreateAuction)
			auctions.POST("/:id/bids", middleware.AuthMiddleware(), auctionController.PlaceBid)
			auctions.POST("/:id/end", middleware.AuthMiddleware(), auctionController.EndAuction)
			auctions.POST("/:id/cancel", middleware.AuthMiddleware(), auctionController.CancelAuction)
		}

		// ====== 报价路由 ======
		offers := api.Group("/offers", middleware.AuthMiddleware())
		{
			offerController := controllers.NewOfferController()
			offers.POST("", offerController.CreateOffer)
			offers.GET("", offerController.GetOffers)
			offers.GET("/:id", offerController.GetOffer)
			offers.POST("/:id/accept", offerController.AcceptOffer)
			offers.POST("/:id/reject", offerController.RejectOffer)
			offers.POST("/:id/counter", offerController.CounterOffer)
			offers.POST("/:id/respond", offerController.RespondToCounter)
		}

		// ====== 交易路由 ======
		transactions := api.Group("/transactions")
		{
			transactionController := controllers.NewTransactionController()
			transactions.POST("/checkout", middleware.AuthMiddleware(), transactionController.Checkout)
			transactions.GET("", middleware.AuthMiddleware(), transactionController.GetTransactions)
			transactions.GET("/:id", middleware.AuthMiddleware(), transactionController.GetTransaction)
			transactions.PUT("/:id/tracking", middleware.AuthMiddleware(), transactionController.UpdateTracking)
			transactions.POST("/:id/complete", middleware.AuthMiddleware(), transactionController.Complete)
			transactions.POST("/:id/dispute", middleware.AuthMiddleware(), transactionController.Dispute)
			transactions.POST("/:id/cancel", middleware.AuthMiddleware(), transactionController.Cancel)

			// 回调路由：由支付网关/物流方调用，部署时由网关层鉴权
			transactions.POST("/:id/paid", transactionController.MarkPaid)
			transactions.POST("/:id/delivered", transactionController.MarkDelivered)
			transactions.POST("/:id/refund", transactionController.Refund)
		}
	}
}
