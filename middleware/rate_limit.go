package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"gppo/models"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis     *redis.Client
	Requests  int           // Number of requests allowed
	Window    time.Duration // Time window
	KeyPrefix string        // Redis key prefix
	SkipPaths []string      // Paths to skip rate limiting
}

// RateLimiter limits requests per officer (falling back to client IP)
// using a fixed window counter in Redis.
type RateLimiter struct {
	config RateLimitConfig
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if config.Requests <= 0 {
		config.Requests = 120
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &RateLimiter{config: config}
}

// Middleware returns the rate limiting middleware. Without a Redis
// client it is a pass-through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if rl.config.Redis == nil || pathSkipped(c.Request.URL.Path, rl.config.SkipPaths) {
			c.Next()
			return
		}

		subject := c.GetString("officerId")
		if subject == "" {
			subject = c.ClientIP()
		}
		window := time.Now().Unix() / int64(rl.config.Window.Seconds())
		key := fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, subject, window)

		ctx := c.Request.Context()
		count, err := rl.config.Redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down must not take the API with it.
			logrus.Warnf("Rate limit check failed, allowing request: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.config.Redis.Expire(ctx, key, rl.config.Window)
		}

		if count > int64(rl.config.Requests) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.config.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "RATE_LIMITED",
				Message: "Too many requests",
				Code:    "RATE_LIMITED",
			})
			return
		}

		c.Next()
	})
}
