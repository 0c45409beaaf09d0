package repositories

import (
	"context"
	"errors"
	"fmt"

	"riciti/app/models/invoice"
	"riciti/app/models/user"
	"riciti/pkg/database"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository stores invoices and their line items
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository binds the repository to db, or to the shared
// connection when db is nil
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	if db == nil {
		db = database.DB
	}
	return &InvoiceRepository{db: db}
}

// Stats is the dashboard summary for one tenant
type Stats struct {
	TotalInvoices  int64           `json:"totalInvoices"`
	PaidInvoices   int64           `json:"paidInvoices"`
	UnpaidInvoices int64           `json:"unpaidInvoices"`
	BilledTotal    decimal.Decimal `json:"billedTotal"`
	PaidTotal      decimal.Decimal `json:"paidTotal"`
}

// Create inserts the invoice together with its line items
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

// GetByPublicID loads an invoice and its items by public id
func (r *InvoiceRepository) GetByPublicID(ctx context.Context, publicID string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("public_id = ?", publicID).
		Take(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoice.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListByTenant pages through the tenant's invoices, newest first
func (r *InvoiceRepository) ListByTenant(ctx context.Context, tenant invoice.Tenant, page, pageSize int) ([]invoice.Invoice, int64, error) {
	var (
		rows  []invoice.Invoice
		total int64
	)

	query := scopeTenant(r.db.WithContext(ctx).Model(&invoice.Invoice{}), tenant)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	return rows, total, err
}

// DashboardStats aggregates counts and totals in a single query
func (r *InvoiceRepository) DashboardStats(ctx context.Context, tenant invoice.Tenant) (Stats, error) {
	var stats Stats
	err := scopeTenant(r.db.WithContext(ctx).Model(&invoice.Invoice{}), tenant).
		Select(`COUNT(*) AS total_invoices,
			COALESCE(SUM(CASE WHEN is_paid THEN 1 ELSE 0 END), 0) AS paid_invoices,
			COALESCE(SUM(total), 0) AS billed_total,
			COALESCE(SUM(CASE WHEN is_paid THEN total ELSE 0 END), 0) AS paid_total`).
		Scan(&stats).Error
	if err != nil {
		return Stats{}, err
	}
	stats.UnpaidInvoices = stats.TotalInvoices - stats.PaidInvoices
	return stats, nil
}

// MigrateGuestInvoices hands every invoice of a guest session to userID
// and records the link on the user row. Returns the number moved.
func (r *InvoiceRepository) MigrateGuestInvoices(ctx context.Context, guestSessionID, userID string) (int64, error) {
	if guestSessionID == "" || userID == "" {
		return 0, nil
	}

	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&invoice.Invoice{}).
			Where("guest_session_id = ?", guestSessionID).
			Updates(map[string]interface{}{"user_id": userID, "guest_session_id": nil})
		if res.Error != nil {
			return fmt.Errorf("reassign invoices: %w", res.Error)
		}
		moved = res.RowsAffected

		u := user.User{GuestID: &guestSessionID}
		u.ID = userID
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"guest_id", "updated_at"}),
		}).Create(&u).Error
	})
	return moved, err
}

func scopeTenant(db *gorm.DB, tenant invoice.Tenant) *gorm.DB {
	if tenant.UserID != "" {
		return db.Where("user_id = ?", tenant.UserID)
	}
	return db.Where("guest_session_id = ?", tenant.GuestSessionID)
}
