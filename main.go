package main

import (
	"log"
	"os"
	"time"

	"bookbid_go/config"
	"bookbid_go/middleware"
	"bookbid_go/models"
	"bookbid_go/routes"
	"bookbid_go/services"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	//设置环境
	env := os.Getenv("GIN_MODE")
	if env == "" {
		os.Setenv("GIN_MODE", "debug")
	}

	// 初始化日志系统
	if err := middleware.InitLogger(env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer middleware.FlushLogger()

	// 初始化数据库
	if err := config.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer config.CloseDatabase()

	// 自动迁移表结构（生产环境由迁移脚本管理，置 DB_AUTO_MIGRATE=false 关闭）
	if config.GetEnvBool("DB_AUTO_MIGRATE", true) {
		if err := config.DB.AutoMigrate(
			&models.User{},
			&models.Book{},
			&models.Auction{},
			&models.Bid{},
			&models.Offer{},
			&models.Transaction{},
		); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// 初始化Redis（缓存与限流为可选依赖，连不上时降级运行）
	if err := config.InitializeRedis(); err != nil {
		log.Printf("⚠️  Redis unavailable, running without cache: %v", err)
		config.RedisClient = nil
	} else {
		defer config.CloseRedis()
	}

	// 启动过期拍卖清扫任务
	startAuctionSweeper()

	// 设置路由
	r := config.SetupRouter()

	// 注册自定义路由
	routes.SetupRoutes(r)

	serverConfig := config.GetServerConfig()
	if err := r.Run(":" + serverConfig.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// startAuctionSweeper 定时结算已过截止时间的拍卖
func startAuctionSweeper() {
	policy := config.GetTradePolicy()
	auctionService := services.NewAuctionService()

	go func() {
		ticker := time.NewTicker(policy.AuctionSweepPeriod)
		defer ticker.Stop()

		for range ticker.C {
			closed, err := auctionService.SettleExpired()
			if err != nil {
				middleware.ErrorLogger("Auction sweep failed", zap.Error(err))
				continue
			}
			if closed > 0 {
				middleware.InfoLogger("Auction sweep settled expired auctions", zap.Int("closed", closed))
			}
		}
	}()
}
