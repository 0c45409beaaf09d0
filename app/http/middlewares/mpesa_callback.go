package middlewares

import (
	"crypto/subtle"
	"net/http"

	"riciti/pkg/logger"
	"riciti/pkg/mpesa"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CallbackGuardOptions configures MpesaCallbackGuard
type CallbackGuardOptions struct {
	// Expected ?token= value; empty skips the check
	Secret     string
	AllowedIPs []string
	// Enforce AllowedIPs, on in production
	EnforceIPs bool
}

// MpesaCallbackGuard drops callbacks that fail the token or source IP
// check. Rejections still get the acknowledgement so nothing leaks.
func MpesaCallbackGuard(opts CallbackGuardOptions) gin.HandlerFunc {
	allowed := make(map[string]bool, len(opts.AllowedIPs))
	for _, ip := range opts.AllowedIPs {
		allowed[ip] = true
	}

	return func(c *gin.Context) {
		if opts.Secret != "" {
			token := c.Query("token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(opts.Secret)) != 1 {
				logger.Warn("MpesaCallback", zap.String("reject", "token"), zap.String("ip", c.ClientIP()))
				acknowledge(c)
				return
			}
		}

		if opts.EnforceIPs && !allowed[c.ClientIP()] {
			logger.Warn("MpesaCallback", zap.String("reject", "ip"), zap.String("ip", c.ClientIP()))
			acknowledge(c)
			return
		}

		c.Next()
	}
}

func acknowledge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusOK, mpesa.Accepted)
}
