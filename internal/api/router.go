package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/void-feed/config"
	_ "github.com/d60-Lab/void-feed/docs"
	"github.com/d60-Lab/void-feed/internal/api/handler"
	"github.com/d60-Lab/void-feed/internal/api/middleware"
)

// NewRouter 注册中间件与路由
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Sentry.DSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.Logger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.Auth(cfg.Auth.JWTSecret, cfg.Auth.Issuer))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/feed", h.GetFeed)
		v1.GET("/feed/stats", h.GetStats)
		v1.POST("/feed/refresh", h.Refresh)
		v1.DELETE("/feed/posts/:id", middleware.RateLimit(cfg.RateLimit.DeletesPerSecond, cfg.RateLimit.Burst), h.DeletePost)
		v1.GET("/notices", h.ListNotices)
		v1.GET("/deleters/top", h.TopDeleters)
		v1.PUT("/audio", h.SetAudio)
	}
	return r
}
