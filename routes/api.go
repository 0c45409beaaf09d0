// Package routes registers the HTTP API
package routes

import (
	"riciti/app/http/controllers/api/v1/health"
	"riciti/app/http/controllers/api/v1/invoice"
	"riciti/app/http/controllers/api/v1/payment"
	"riciti/app/http/middlewares"
	"riciti/pkg/config"

	"github.com/gin-gonic/gin"
)

// CallbackPath is the provider callback route; it skips the origin check
const CallbackPath = "/v1/payments/callback"

// publicInvoiceMaxAge is how long shared caches may keep a public invoice
const publicInvoiceMaxAge = 60

// Dependencies are the services the handlers are bound to
type Dependencies struct {
	Payments interface {
		payment.Service
		invoice.StatusReader
	}
	Invoices      invoice.Store
	Health        map[string]health.Check
	CallbackGuard middlewares.CallbackGuardOptions
	Tenant        middlewares.TenantOptions
}

// RegisterAPIRoutes registers every API route
func RegisterAPIRoutes(r *gin.Engine, deps Dependencies) {
	hc := health.NewHealthController(deps.Health)
	r.GET("/health", hc.Show)

	pc := payment.NewPaymentController(deps.Payments)
	ic := invoice.NewInvoiceController(deps.Invoices, deps.Payments)

	globalLimit := config.GetString("app.global_rate_limit", "30000-H")
	paymentLimit := config.GetString("app.payment_rate_limit", "5-M")
	publicLimit := config.GetString("app.public_rate_limit", "60-M")

	// POST /v1/payments/callback?token=...; always answered 200, never rate limited
	callback := middlewares.MpesaCallbackGuard(deps.CallbackGuard)
	r.POST(CallbackPath, callback, pc.Callback)
	r.POST("/payments/callback", callback, pc.Callback)

	v1 := r.Group("/v1")
	v1.Use(middlewares.LimitIP(globalLimit))

	// 💳 Payments
	registerPaymentRoutes(v1.Group("/payments"), pc, paymentLimit)

	// 🧾 Invoices
	invoiceRoutes := v1.Group("/invoices")
	{
		owned := invoiceRoutes.Group("", middlewares.Tenant(deps.Tenant))
		// POST /v1/invoices
		owned.POST("", ic.Store)
		// GET /v1/invoices?page=1&pageSize=20
		owned.GET("", middlewares.NoCache(), ic.Index)
		// GET /v1/invoices/stats
		owned.GET("/stats", middlewares.NoCache(), ic.Stats)

		// GET /v1/invoices/:publicId
		invoiceRoutes.GET("/:publicId",
			middlewares.LimitIP(publicLimit),
			middlewares.PublicCache(publicInvoiceMaxAge),
			ic.Show,
		)
		// GET /v1/invoices/:publicId/status, polled by the payment modal
		invoiceRoutes.GET("/:publicId/status", middlewares.NoCache(), ic.Status)
	}

	// Unversioned aliases of the payment and status endpoints
	root := r.Group("", middlewares.LimitIP(globalLimit))
	registerPaymentRoutes(root.Group("/payments"), pc, paymentLimit)
	root.GET("/invoices/:publicId/status", middlewares.NoCache(), ic.Status)
}

func registerPaymentRoutes(g *gin.RouterGroup, pc *payment.PaymentController, limit string) {
	// POST /payments/initiate
	g.POST("/initiate", middlewares.LimitPerRoute(limit), pc.Initiate)
	// POST /payments/query
	g.POST("/query", middlewares.LimitPerRoute(limit), pc.Query)
}
