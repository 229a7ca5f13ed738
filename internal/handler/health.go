package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// HealthCheck 健康检查处理器
// rdb 为 nil 时（未启用 Redis）跳过 Redis 检查
func HealthCheck(db *bun.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// 检查数据库连接
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}

		if rdb == nil {
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
				"redis":    "disabled",
			})
			return
		}

		// 检查 Redis 连接
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"redis":    "disconnected",
				"database": "connected",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
			"redis":    "connected",
		})
	}
}
