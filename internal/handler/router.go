package handler

import (
	"sicbosettle/internal/config"
	"sicbosettle/pkg/clock"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, cfg *config.Config, clk clock.Clock) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, cfg, clk)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/deposit", h.Deposit)
		}

		// 结算任务相关
		settle := api.Group("/settle")
		{
			settle.POST("/enqueue", h.EnqueueSettleJob)
			settle.GET("/job", h.GetSettleJob)
			settle.POST("/cancel", h.CancelSettleJob)
		}

		// 统计协作方只读接口
		api.GET("/outcome", h.GetOutcome)
		round := api.Group("/round")
		{
			round.GET("/bets", h.ListRoundBets)
			round.GET("/ledger", h.ListRoundLedger)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
