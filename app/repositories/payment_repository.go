// Package repositories wraps gorm queries per aggregate
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"riciti/app/models/invoice"
	"riciti/app/models/payment"
	"riciti/pkg/database"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEmptyPatch an update carried no fields
var ErrEmptyPatch = errors.New("empty payment patch")

// NewPayment is the input for a charge attempt
type NewPayment struct {
	InvoiceID   string
	UserID      *string
	PhoneNumber string
	Amount      decimal.Decimal
	Currency    string
}

// PaymentRepository is the ledger of charge attempts. Every status write
// goes through a conditional update that refuses to touch terminal rows.
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository binds the repository to db, or to the shared
// connection when db is nil
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	if db == nil {
		db = database.DB
	}
	return &PaymentRepository{db: db}
}

// CreateIfUnpaidAndNoActivePayment inserts a PENDING payment in one
// transaction: the invoice row is locked (FOR UPDATE on postgres, the
// sqlite write lock otherwise), then the paid flag and active payments are
// checked. The partial unique index on active payments catches anything
// that slips past the check.
func (r *PaymentRepository) CreateIfUnpaidAndNoActivePayment(ctx context.Context, in NewPayment) (*payment.Payment, error) {
	var created *payment.Payment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&invoice.Invoice{}).Select("id", "is_paid")
		if database.IsPostgres(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var inv invoice.Invoice
		if err := q.Where("id = ?", in.InvoiceID).Take(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invoice.ErrInvoiceNotFound
			}
			return err
		}
		if inv.IsPaid {
			return payment.ErrAlreadyPaid
		}

		var active int64
		if err := tx.Model(&payment.Payment{}).
			Where("invoice_id = ? AND status IN ?", in.InvoiceID, payment.ActiveStatuses).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return payment.ErrPaymentInProgress
		}

		p := &payment.Payment{
			InvoiceID:   in.InvoiceID,
			UserID:      in.UserID,
			PhoneNumber: in.PhoneNumber,
			Amount:      in.Amount,
			Currency:    in.Currency,
			Status:      payment.StatusPending,
		}
		if err := tx.Create(p).Error; err != nil {
			if isUniqueViolation(err) {
				return payment.ErrPaymentInProgress
			}
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, payment.ErrPaymentInProgress
		}
		return nil, err
	}
	return created, nil
}

// UpdateByCheckoutRequestID applies patch unless the row is terminal.
// applied is false when another writer already resolved the payment.
func (r *PaymentRepository) UpdateByCheckoutRequestID(ctx context.Context, checkoutRequestID string, patch payment.Patch) (p *payment.Payment, applied bool, err error) {
	return r.conditionalUpdate(ctx, "checkout_request_id = ?", checkoutRequestID, patch)
}

// UpdateByID is UpdateByCheckoutRequestID keyed by primary key
func (r *PaymentRepository) UpdateByID(ctx context.Context, id string, patch payment.Patch) (p *payment.Payment, applied bool, err error) {
	return r.conditionalUpdate(ctx, "id = ?", id, patch)
}

func (r *PaymentRepository) conditionalUpdate(ctx context.Context, where string, key string, patch payment.Patch) (*payment.Payment, bool, error) {
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil, false, ErrEmptyPatch
	}

	res := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where(where, key).
		Where("status NOT IN ?", payment.TerminalStatuses).
		Updates(cols)
	if res.Error != nil {
		return nil, false, fmt.Errorf("update payment: %w", res.Error)
	}

	var p payment.Payment
	if err := r.db.WithContext(ctx).Where(where, key).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, payment.ErrPaymentNotFound
		}
		return nil, false, err
	}
	return &p, res.RowsAffected > 0, nil
}

// FindByCheckoutRequestID looks a payment up by the provider join key
func (r *PaymentRepository) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*payment.Payment, error) {
	return r.findOne(ctx, "checkout_request_id = ?", checkoutRequestID)
}

// FindByID looks a payment up by primary key
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*payment.Payment, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *PaymentRepository) findOne(ctx context.Context, where string, key string) (*payment.Payment, error) {
	if key == "" {
		return nil, payment.ErrPaymentNotFound
	}
	var p payment.Payment
	if err := r.db.WithContext(ctx).Where(where, key).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// LatestForInvoice returns the newest attempt, or nil when there is none
func (r *PaymentRepository) LatestForInvoice(ctx context.Context, invoiceID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		Take(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListStaleProcessing returns PROCESSING payments untouched since before
func (r *PaymentRepository) ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]payment.Payment, error) {
	var rows []payment.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ? AND checkout_request_id IS NOT NULL", payment.StatusProcessing, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkInvoicePaid sets is_paid and paid_at unconditionally
func (r *PaymentRepository) MarkInvoicePaid(ctx context.Context, invoiceID string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&invoice.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(map[string]interface{}{"is_paid": true, "paid_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invoice.ErrInvoiceNotFound
	}
	return nil
}

// isUniqueViolation recognises duplicate-key errors from both drivers
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
