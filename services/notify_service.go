package services

import (
	"context"
	"time"

	"bookbid_go/config"
	"bookbid_go/middleware"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var redisCtx = context.Background()

// 事件流名称
const eventStream = "marketplace_events"

// notifyEvent 发布领域事件到Redis流（尽力而为）
// 通知失败只记日志，绝不让主操作失败；没有Redis时静默跳过
func notifyEvent(event string, values map[string]interface{}) {
	if config.RedisClient == nil {
		return
	}

	payload := map[string]interface{}{
		"event":     event,
		"timestamp": time.Now().Unix(),
	}
	for k, v := range values {
		payload[k] = v
	}

	go func() {
		if err := config.RedisClient.XAdd(redisCtx, &redis.XAddArgs{
			Stream: eventStream,
			Values: payload,
		}).Err(); err != nil {
			middleware.WarnLogger("failed to publish event",
				zap.String("event", event),
				zap.Error(err),
			)
		}
	}()
}
