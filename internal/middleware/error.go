package middleware

import (
	"gcrp/pkg/logger"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// ErrorHandler 错误处理中间件 - 主要处理panic
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().Errorf("Panic recovered: %v", err)
				response.ServerError(c, "Server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
