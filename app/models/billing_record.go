package models

import "time"

// Billing record lifecycle. pending is the only non-terminal state; the
// webhook processor moves records into paid/failed/cancelled, and only a
// fresh reconciliation may overwrite a terminal state afterwards.
const (
	BillingStatusPending   = "pending"
	BillingStatusPaid      = "paid"
	BillingStatusFailed    = "failed"
	BillingStatusCancelled = "cancelled"
)

// BillingRecord represents one charge cycle: the local ledger entry tying
// an external invoice and (optionally) an external payment together.
// The unique indexes on the external ids are the sole duplicate guard
// under concurrent webhook/sync writers.
type BillingRecord struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UUID              string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	CustomerID        uint       `gorm:"not null;index" json:"customer_id"`
	ExternalPaymentID *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"external_payment_id,omitempty"`
	ExternalInvoiceID *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"external_invoice_id,omitempty"`
	AmountMinor       int64      `gorm:"not null" json:"amount_minor" validate:"gte=0"`
	Currency          string     `gorm:"type:varchar(3);not null" json:"currency" validate:"required,len=3"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Description       string     `gorm:"type:text" json:"description"`
	DueDate           *time.Time `gorm:"type:timestamp;default:null" json:"due_date,omitempty"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"-"`
}

// IsTerminalBillingStatus reports whether status permits no further
// webhook-driven transitions.
func IsTerminalBillingStatus(status string) bool {
	switch status {
	case BillingStatusPaid, BillingStatusFailed, BillingStatusCancelled:
		return true
	default:
		return false
	}
}
