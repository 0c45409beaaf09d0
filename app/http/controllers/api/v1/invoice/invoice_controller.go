// Package invoice handles the invoice endpoints
package invoice

import (
	"context"
	"errors"

	"riciti/app/http/middlewares"
	"riciti/app/models/invoice"
	"riciti/app/repositories"
	"riciti/app/requests"
	paysvc "riciti/pkg/payment"
	"riciti/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the invoice persistence the handlers need
type Store interface {
	Create(ctx context.Context, inv *invoice.Invoice) error
	GetByPublicID(ctx context.Context, publicID string) (*invoice.Invoice, error)
	ListByTenant(ctx context.Context, tenant invoice.Tenant, page, pageSize int) ([]invoice.Invoice, int64, error)
	DashboardStats(ctx context.Context, tenant invoice.Tenant) (repositories.Stats, error)
}

// StatusReader reports payment progress for an invoice
type StatusReader interface {
	InvoiceStatus(ctx context.Context, publicID string) (*paysvc.InvoiceStatus, error)
}

type InvoiceController struct {
	store    Store
	payments StatusReader
}

// NewInvoiceController binds the handlers
func NewInvoiceController(store Store, payments StatusReader) *InvoiceController {
	return &InvoiceController{store: store, payments: payments}
}

// Store creates an invoice for the current user or guest
func (ic *InvoiceController) Store(c *gin.Context) {
	tenant := middlewares.CurrentTenant(c)
	if tenant.IsZero() {
		response.Abort400(c, "Missing session")
		return
	}

	req := requests.InvoiceRequest{}
	if ok := requests.Validate(c, &req, requests.Invoice); !ok {
		return
	}

	inv := req.ToInvoice(tenant)
	if err := ic.store.Create(c.Request.Context(), inv); err != nil {
		response.ServerError(c, err, "Invoice could not be saved")
		return
	}
	response.Created(c, inv)
}

// Index lists the tenant's invoices, newest first
func (ic *InvoiceController) Index(c *gin.Context) {
	page := cast.ToInt(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize := cast.ToInt(c.DefaultQuery("pageSize", cast.ToString(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	rows, total, err := ic.store.ListByTenant(c.Request.Context(), middlewares.CurrentTenant(c), page, pageSize)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	response.Data(c, gin.H{
		"items":    rows,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// Stats returns the dashboard summary
func (ic *InvoiceController) Stats(c *gin.Context) {
	stats, err := ic.store.DashboardStats(c.Request.Context(), middlewares.CurrentTenant(c))
	if err != nil {
		response.ServerError(c, err)
		return
	}
	response.Data(c, stats)
}

// Show is the public view of an invoice
func (ic *InvoiceController) Show(c *gin.Context) {
	inv, err := ic.store.GetByPublicID(c.Request.Context(), c.Param("publicId"))
	if err != nil {
		abortLookup(c, err)
		return
	}
	response.Data(c, inv.Public())
}

// Status is polled by the payment modal; never cached
func (ic *InvoiceController) Status(c *gin.Context) {
	status, err := ic.payments.InvoiceStatus(c.Request.Context(), c.Param("publicId"))
	if err != nil {
		abortLookup(c, err)
		return
	}
	response.Data(c, status)
}

func abortLookup(c *gin.Context, err error) {
	if errors.Is(err, invoice.ErrInvoiceNotFound) {
		response.Abort404(c, "Invoice not found")
		return
	}
	response.ServerError(c, err)
}
