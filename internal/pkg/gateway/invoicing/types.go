package invoicing

import (
	"context"
	"time"
)

// Invoice statuses as reported by the invoicing service. Mapping to local
// billing statuses happens in the billing package, never here.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusOpen      = "open"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// PartyProfile is the customer data sent when creating an invoicing party.
type PartyProfile struct {
	Name  string
	Email string
	Phone string
}

// Party is the customer's record in the remote invoicing service.
type Party struct {
	ID    string
	Name  string
	Email string
}

// LineItem is one position on an invoice, amounts in minor units.
type LineItem struct {
	Name            string
	Quantity        int
	UnitAmountMinor int64
}

// CreateInvoiceInput carries everything needed for invoice creation.
type CreateInvoiceInput struct {
	PartyID   string
	Reference string
	Currency  string
	DueDate   *time.Time
	LineItems []LineItem
}

// Invoice is the normalized remote invoice shape the core operates on.
type Invoice struct {
	ID          string
	PartyID     string
	Reference   string
	Status      string
	TotalMinor  int64
	Currency    string
	Description string
	DueDate     *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
}

// Gateway is the capability contract the invoicing service must satisfy.
type Gateway interface {
	CreateParty(ctx context.Context, profile PartyProfile) (*Party, error)
	FindPartyByEmail(ctx context.Context, email string) (*Party, error)
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	ListInvoices(ctx context.Context, partyID string) ([]Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, invoiceID, status string) error
	// GetInvoiceDocumentURL returns nil when the remote document has not
	// been generated yet.
	GetInvoiceDocumentURL(ctx context.Context, invoiceID string) (*string, error)
}
