package router

import (
	"net/http"

	"github.com/blues/fundgate/internal/config"
	"github.com/blues/fundgate/internal/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖的接口
type Handlers struct {
	Campaign     *handler.CampaignHandler
	Contribution *handler.ContributionHandler
	Payment      *handler.PaymentHandler
	Pricing      *handler.PricingHandler
	Device       *handler.DeviceHandler
}

// StatusFunc 健康检查附带的后台状态
type StatusFunc func() map[string]interface{}

// Setup 注册路由
func Setup(h Handlers, cfg config.ServerConfig, status StatusFunc) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()

	// 中间件
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(metricsMiddleware())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "fundgate",
		}
		if status != nil {
			body["monitor"] = status()
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := newDeviceLimiter(cfg.RateLimit, cfg.RateBurst)

	// API版本组
	v1 := r.Group("/api/v1")
	v1.Use(deviceMiddleware())
	{
		pricing := v1.Group("/pricing")
		{
			pricing.GET("", h.Pricing.GetQuote)
			pricing.GET("/breakdown", h.Pricing.GetBreakdown)
		}

		devices := v1.Group("/devices")
		{
			devices.POST("/sessions", h.Device.RecordSession)
			devices.DELETE("/fraud-data", h.Device.ClearFraudData)
		}

		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", h.Campaign.GetCampaigns)
			campaigns.GET("/stats", h.Campaign.GetStats)
			campaigns.POST("", h.Campaign.CreateCampaign)
			campaigns.GET("/:id", h.Campaign.GetCampaign)
			campaigns.PUT("/:id", h.Campaign.UpdateCampaign)
			campaigns.DELETE("/:id", h.Campaign.DeleteCampaign)
			campaigns.POST("/:id/extend", h.Campaign.ExtendCampaign)
			campaigns.GET("/:id/contributions", h.Campaign.GetContributions)
			campaigns.GET("/:id/contributors", h.Campaign.GetContributors)
			campaigns.POST("/:id/contributions/check", limiter.middleware(), h.Contribution.CheckContribution)
			campaigns.POST("/:id/contributions", limiter.middleware(), h.Contribution.Contribute)
		}

		payments := v1.Group("/payments")
		{
			payments.GET("", h.Payment.GetPayments)
			payments.GET("/:id", h.Payment.GetPayment)
			payments.PUT("/:id", h.Payment.AttachTransaction)
		}
	}

	return r
}
