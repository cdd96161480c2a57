package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware 访问日志
// 结算接口基本由内部系统调用，按"方法 路径 | 状态 | 耗时 | 来源"
// 打平成一行，方便按局号 grep
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		fullPath := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			fullPath = fullPath + "?" + raw
		}

		c.Next()

		log.Printf("[HTTP] %-7s %s | %d | %v | %s",
			c.Request.Method,
			fullPath,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
		)
	}
}

// RecoveryMiddleware 捕获 panic，返回统一错误响应而不是把进程带崩
// 结算主链路在后台任务里，接口层的 panic 不允许波及它
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    http.StatusInternalServerError,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域响应头，运营后台直接调结算查询接口时需要
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
