package billing

import (
	"time"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
)

// CreateCycleInput carries one billing-cycle request into the orchestrator.
type CreateCycleInput struct {
	CustomerID  uint
	AmountMinor int64
	Currency    string
	Description string
	DueDate     *time.Time
	LineItems   []invoicing.LineItem
}

// CycleResult is everything a successful cycle produced. Payment is nil
// for customers without an active mandate.
type CycleResult struct {
	Record  *models.BillingRecord
	Receipt *models.Receipt
	Invoice *invoicing.Invoice
	Payment *payments.Payment
}

// ProcessResult summarizes one webhook batch.
type ProcessResult struct {
	EventsProcessed int
	Duplicate       bool
}

// SyncResult summarizes one reconciliation run for a customer.
type SyncResult struct {
	CustomerID     uint      `json:"customer_id"`
	InvoicesSynced int       `json:"invoices_synced"`
	PaymentsSynced int       `json:"payments_synced"`
	RecordsCreated int       `json:"records_created"`
	FromCache      bool      `json:"from_cache"`
	SyncedAt       time.Time `json:"synced_at"`
}
