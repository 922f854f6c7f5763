package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ==================== 同步限流中间件 ====================

// SyncCooldown 手动同步冷却中间件
//
// 使用示例:
//
//	limiter := middleware.NewCooldownLimiter()
//	sync.POST("/refresh",
//	    middleware.SyncCooldown(limiter, middleware.ActionRefresh, 30*time.Second),
//	    syncCtl.Refresh,
//	)
//
// interval 为 0 时不限流
func SyncCooldown(limiter *CooldownLimiter, action Action, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if interval <= 0 || limiter == nil {
			c.Next()
			return
		}

		result := limiter.Check(action.Key(), interval)
		if !result.Allowed {
			log.WithFields(log.Fields{
				"action":      action,
				"retry_after": result.RetryAfter,
			}).Warn("[Middleware] 手动同步被限流")

			c.Header("Retry-After", fmt.Sprintf("%d", retrySeconds(result.RetryAfter)))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": retrySeconds(result.RetryAfter),
					"action":      action,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ==================== 辅助函数 ====================

// retrySeconds 向上取整，不足 1 秒按 1 秒
func retrySeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := retrySeconds(d)

	if seconds < 60 {
		return fmt.Sprintf("同步冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("同步冷却中，请 %d 分钟后重试", minutes)
	}

	return fmt.Sprintf("同步冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
