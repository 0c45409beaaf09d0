package middlewares

import (
	"time"

	"riciti/pkg/helpers"
	"riciti/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger records one line per request. Bodies and query strings are not
// logged; callback URLs carry the shared secret.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cost := time.Since(start)

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
			zap.String("time", helpers.MicrosecondsStr(cost)),
		}

		switch {
		case status >= 500:
			logger.Error("HTTP Error "+c.Request.Method, fields...)
		case status >= 400:
			logger.Warn("HTTP Warning "+c.Request.Method, fields...)
		default:
			logger.Debug("HTTP Access "+c.Request.Method, fields...)
		}
	}
}
