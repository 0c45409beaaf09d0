// Package migrations lists the models and raw statements applied at boot
package migrations

import (
	"riciti/app/models/invoice"
	"riciti/app/models/payment"
	"riciti/app/models/user"
)

// RegisterTables returns the models to auto-migrate
func RegisterTables() []interface{} {
	return []interface{}{
		&user.User{},
		&invoice.Invoice{},
		&invoice.LineItem{},
		&payment.Payment{},
	}
}

// RegisterStatements returns statements run after AutoMigrate. The partial
// unique index backs the one-active-payment-per-invoice rule; both postgres
// and sqlite accept it.
func RegisterStatements() []string {
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_active ON payments (invoice_id) WHERE status IN ('PENDING', 'PROCESSING')`,
	}
}
