package middleware

import (
	"strings"

	"bookbid_go/config"
	"bookbid_go/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware JWT认证中间件
// 核心引擎信任这里解析出的 user_id，只做属主/买卖双方的授权校验，不再二次鉴权
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从Header获取token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		// 2. 解析 Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		// 3. 验证token
		claims, err := config.GetJWTService().ValidateToken(parts[1])
		if err != nil {
			utils.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		// 4. 将用户信息注入上下文
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)

		c.Next()
	}
}
