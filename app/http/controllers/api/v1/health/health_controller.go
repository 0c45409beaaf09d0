// Package health reports dependency reachability
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check pings one dependency
type Check func(ctx context.Context) error

type HealthController struct {
	checks map[string]Check
}

// NewHealthController runs checks by name; a nil check reports "disabled"
func NewHealthController(checks map[string]Check) *HealthController {
	return &HealthController{checks: checks}
}

// Show answers 200 when every enabled check passes, 503 otherwise
func (hc *HealthController) Show(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	ok := true
	results := gin.H{}
	for name, check := range hc.checks {
		switch {
		case check == nil:
			results[name] = "disabled"
		case check(ctx) != nil:
			ok = false
			results[name] = "down"
		default:
			results[name] = "ok"
		}
	}

	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(code, gin.H{"ok": ok, "checks": results})
}
