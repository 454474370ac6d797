package router

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blues/fundgate/internal/handler"
	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+
			handler.HeaderWallet+", "+handler.HeaderDevice)
		c.Header("Access-Control-Expose-Headers", handler.HeaderDevice)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// deviceMiddleware 读取设备令牌，缺失或非法时签发新的 UUID 并通过响应头返回
func deviceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(handler.HeaderDevice))
		if _, err := uuid.Parse(token); err != nil {
			token = uuid.NewString()
		}
		c.Set(handler.ContextDeviceKey, token)
		c.Header(handler.HeaderDevice, token)
		c.Next()
	}
}

// requestLogger 请求日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		if status >= http.StatusInternalServerError {
			logger.Error("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
			return
		}
		logger.Info("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
	}
}

// metricsMiddleware 请求计数和耗时，按路由模板聚合
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// deviceLimiter 按设备限制贡献请求频率
type deviceLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[string]*limiterEntry
	idle      time.Duration
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newDeviceLimiter(perSecond float64, burst int) *deviceLimiter {
	if perSecond <= 0 {
		perSecond = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return &deviceLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		limiters:  make(map[string]*limiterEntry),
		idle:      10 * time.Minute,
		lastSweep: time.Now(),
	}
}

func (l *deviceLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.idle {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *deviceLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(handler.ContextDeviceKey)
		if key == "" {
			key = c.ClientIP()
		}
		if !l.allow(key, time.Now()) {
			handler.ErrorResponse(c, http.StatusTooManyRequests, "请求过于频繁")
			c.Abort()
			return
		}
		c.Next()
	}
}
