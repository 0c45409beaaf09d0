package middlewares

import (
	"strconv"
	"time"

	"riciti/pkg/app"
	"riciti/pkg/limiter"
	"riciti/pkg/logger"
	"riciti/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// LimitIP limits every request from one IP
//
// Limits are formatted as:
// - 5 reqs/second:   "5-S"
// - 10 reqs/minute:  "10-M"
// - 1000 reqs/hour:  "1000-H"
// - 2000 reqs/day:   "2000-D"
func LimitIP(limit string) gin.HandlerFunc {
	if app.IsTesting() {
		limit = "1000000-H"
	}
	return func(c *gin.Context) {
		if ok := limitHandler(c, limiter.GetKeyIP(c), limit); !ok {
			return
		}
		c.Next()
	}
}

// LimitPerRoute limits one route per IP
func LimitPerRoute(limit string) gin.HandlerFunc {
	if app.IsTesting() {
		limit = "1000000-H"
	}
	return func(c *gin.Context) {
		if ok := limitHandler(c, limiter.GetKeyRouteWithIP(c), limit); !ok {
			return
		}
		c.Next()
	}
}

// limitHandler fails open when the store is unavailable
func limitHandler(c *gin.Context, key string, limit string) bool {
	rate, err := limiter.CheckRate(c, key, limit)
	if err != nil {
		logger.ErrorString("Limiter", "check", err.Error())
		return true
	}

	c.Header("X-RateLimit-Limit", cast.ToString(rate.Limit))
	c.Header("X-RateLimit-Remaining", cast.ToString(rate.Remaining))
	c.Header("X-RateLimit-Reset", cast.ToString(rate.Reset))

	if rate.Reached {
		retry := rate.Reset - time.Now().Unix()
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retry, 10))
		response.Abort429(c)
		return false
	}
	return true
}
