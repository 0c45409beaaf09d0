package bootstrap

import (
	"context"
	"net/http"
	"strings"

	"riciti/app/http/controllers/api/v1/health"
	"riciti/app/http/middlewares"
	"riciti/pkg/app"
	"riciti/pkg/config"
	"riciti/pkg/database"
	"riciti/pkg/redis"
	"riciti/pkg/response"
	"riciti/routes"

	"github.com/gin-gonic/gin"
)

// SetupRoute registers the global middlewares, the API and the 404 handler
func SetupRoute(router *gin.Engine, svc *Services) {
	registerGlobalMiddleWare(router)

	routes.RegisterAPIRoutes(router, routes.Dependencies{
		Payments: svc.Payments,
		Invoices: svc.Invoices,
		Health: map[string]health.Check{
			"database": database.Ping,
			"redis":    redisCheck(),
		},
		CallbackGuard: middlewares.CallbackGuardOptions{
			Secret:     config.GetString("mpesa.callback_secret"),
			AllowedIPs: config.GetStringSlice("mpesa.allowed_ips"),
			EnforceIPs: svc.MpesaConfig.IsProduction(),
		},
		Tenant: middlewares.TenantOptions{
			UserHeader:   config.GetString("app.auth_user_header"),
			SecureCookie: app.IsProduction(),
			Migrator:     svc.Invoices,
		},
	})

	setup404Handler(router)
}

func registerGlobalMiddleWare(router *gin.Engine) {
	allowedOrigin := config.GetString("app.allowed_origin")
	router.Use(
		middlewares.Logger(),
		middlewares.Recovery(),
		middlewares.SecurityHeaders(),
		middlewares.Cors(allowedOrigin),
		middlewares.OriginCheck(allowedOrigin, routes.CallbackPath, "/payments/callback"),
	)
}

func setup404Handler(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		if strings.Contains(c.Request.Header.Get("Accept"), "text/html") {
			c.String(http.StatusNotFound, "404 page not found")
			return
		}
		response.Abort404(c, "Route not found. Check the URL and method.")
	})
}

// redisCheck is nil, reported as disabled, when Redis is off
func redisCheck() health.Check {
	if !redis.Enabled() {
		return nil
	}
	return func(ctx context.Context) error {
		return redis.Default.Ping(ctx)
	}
}
