package middleware

import (
	"time"

	"gcrp/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupCORS 配置CORS中间件
func SetupCORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     cfg.CORS.AllowMethods,
		AllowHeaders:     cfg.CORS.AllowHeaders,
		ExposeHeaders:    cfg.CORS.ExposeHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Hour,
	}

	// "*" 与凭证模式互斥，按通配处理
	for _, origin := range cfg.CORS.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
			break
		}
	}

	return cors.New(corsConfig)
}
