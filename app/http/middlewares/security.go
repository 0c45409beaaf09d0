package middlewares

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"riciti/pkg/response"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the standard hardening headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// Cors allows allowedOrigin, or any origin when it is empty
func Cors(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := "*"
		if allowedOrigin != "" {
			origin = allowedOrigin
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// NoCache marks the response as never cacheable
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}

// PublicCache lets shared caches keep the response for maxAge seconds
func PublicCache(maxAge int) gin.HandlerFunc {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}

// OriginCheck rejects cross-site mutating requests. The Origin (or
// Referer) host must match the request host or allowedOrigin. Paths in
// exempt are skipped; server-to-server callbacks carry no Origin.
func OriginCheck(allowedOrigin string, exempt ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}
	allowedHost := hostOf(allowedOrigin)

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if skip[c.FullPath()] || skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		source := c.GetHeader("Origin")
		if source == "" {
			source = c.GetHeader("Referer")
		}
		// non-browser clients send neither
		if source == "" {
			c.Next()
			return
		}

		host := hostOf(source)
		if host != "" && (strings.EqualFold(host, c.Request.Host) || (allowedHost != "" && strings.EqualFold(host, allowedHost))) {
			c.Next()
			return
		}
		response.Abort403(c, "Cross-site request rejected")
	}
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
