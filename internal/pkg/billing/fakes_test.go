package billing

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
)

// fakeRepo is an in-memory Repository that enforces the same uniqueness
// semantics as the MySQL schema.
type fakeRepo struct {
	mu        sync.Mutex
	customers map[uint]*models.Customer
	records   []*models.BillingRecord
	receipts  map[uint]*models.Receipt
	events    map[string]*models.PaymentWebhookEvent
	nextID    uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: make(map[uint]*models.Customer),
		receipts:  make(map[uint]*models.Receipt),
		events:    make(map[string]*models.PaymentWebhookEvent),
	}
}

func (r *fakeRepo) addCustomer(c *models.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	}
	r.customers[c.ID] = c
}

func (r *fakeRepo) GetCustomerByID(_ context.Context, id uint) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *fakeRepo) GetCustomerByMandateID(_ context.Context, mandateID string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.ExternalMandateID != nil && *c.ExternalMandateID == mandateID {
			clone := *c
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) SaveCustomer(_ context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *customer
	r.customers[customer.ID] = &clone
	return nil
}

func (r *fakeRepo) GetBillingRecordByID(_ context.Context, id uint) (*models.BillingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) GetBillingRecordByExternalPaymentID(_ context.Context, externalPaymentID string) (*models.BillingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ExternalPaymentID != nil && *rec.ExternalPaymentID == externalPaymentID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) GetBillingRecordByExternalInvoiceID(_ context.Context, externalInvoiceID string) (*models.BillingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ExternalInvoiceID != nil && *rec.ExternalInvoiceID == externalInvoiceID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) CreateBillingCycle(_ context.Context, record *models.BillingRecord, receipt *models.Receipt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if record.ExternalPaymentID != nil && rec.ExternalPaymentID != nil && *rec.ExternalPaymentID == *record.ExternalPaymentID {
			return false, nil
		}
		if record.ExternalInvoiceID != nil && rec.ExternalInvoiceID != nil && *rec.ExternalInvoiceID == *record.ExternalInvoiceID {
			return false, nil
		}
	}
	r.nextID++
	record.ID = r.nextID
	r.records = append(r.records, record)

	receipt.BillingRecordID = record.ID
	r.nextID++
	receipt.ID = r.nextID
	r.receipts[record.ID] = receipt
	return true, nil
}

func (r *fakeRepo) UpdateBillingRecordStatus(_ context.Context, recordID uint, status string, paidAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == recordID {
			rec.Status = status
			if paidAt != nil {
				rec.PaidAt = paidAt
			}
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) SetBillingRecordExternalPaymentID(_ context.Context, recordID uint, externalPaymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == recordID && rec.ExternalPaymentID == nil {
			id := externalPaymentID
			rec.ExternalPaymentID = &id
			return nil
		}
	}
	return nil
}

func (r *fakeRepo) GetReceiptByBillingRecordID(_ context.Context, recordID uint) (*models.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.receipts[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *fakeRepo) SaveReceipt(_ context.Context, receipt *models.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *receipt
	r.receipts[receipt.BillingRecordID] = &clone
	return nil
}

func (r *fakeRepo) ListReceiptsMissingDocumentURL(_ context.Context, limit int) ([]models.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Receipt
	for _, rec := range r.receipts {
		if rec.DocumentURL == nil {
			out = append(out, *rec)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := r.events[key]; ok {
		clone := *existing
		return false, &clone, nil
	}
	r.nextID++
	event.ID = r.nextID
	clone := *event
	r.events[key] = &clone
	return true, &clone, nil
}

func (r *fakeRepo) MarkWebhookProcessed(_ context.Context, eventID uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == eventID {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) ListCustomerIDs(_ context.Context) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint, 0, len(r.customers))
	for id := range r.customers {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeRepo) recordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *fakeRepo) recordByID(id uint) *models.BillingRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			clone := *rec
			return &clone
		}
	}
	return nil
}

// fakeInvoicingGW counts calls so tests can assert cache short-circuits
// and single propagation.
type fakeInvoicingGW struct {
	mu            sync.Mutex
	calls         map[string]int
	partiesByMail map[string]*invoicing.Party
	invoices      []invoicing.Invoice
	docURL        *string

	createInvoiceErr error
	listInvoicesErr  error
	docErr           error
	updateStatusErr  error

	updatedStatuses []string
}

func newFakeInvoicingGW() *fakeInvoicingGW {
	return &fakeInvoicingGW{
		calls:         make(map[string]int),
		partiesByMail: make(map[string]*invoicing.Party),
	}
}

func (g *fakeInvoicingGW) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeInvoicingGW) bump(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[name]++
}

func (g *fakeInvoicingGW) CreateParty(_ context.Context, profile invoicing.PartyProfile) (*invoicing.Party, error) {
	g.bump("CreateParty")
	party := &invoicing.Party{ID: "party_" + profile.Email, Name: profile.Name, Email: profile.Email}
	g.mu.Lock()
	g.partiesByMail[profile.Email] = party
	g.mu.Unlock()
	return party, nil
}

func (g *fakeInvoicingGW) FindPartyByEmail(_ context.Context, email string) (*invoicing.Party, error) {
	g.bump("FindPartyByEmail")
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.partiesByMail[email], nil
}

func (g *fakeInvoicingGW) CreateInvoice(_ context.Context, in invoicing.CreateInvoiceInput) (*invoicing.Invoice, error) {
	g.bump("CreateInvoice")
	if g.createInvoiceErr != nil {
		return nil, g.createInvoiceErr
	}
	var total int64
	for _, li := range in.LineItems {
		total += li.UnitAmountMinor * int64(li.Quantity)
	}
	inv := invoicing.Invoice{
		ID:         "inv_" + in.Reference,
		PartyID:    in.PartyID,
		Reference:  in.Reference,
		Status:     invoicing.InvoiceStatusOpen,
		TotalMinor: total,
		Currency:   in.Currency,
		DueDate:    in.DueDate,
		CreatedAt:  time.Now(),
	}
	g.mu.Lock()
	g.invoices = append(g.invoices, inv)
	g.mu.Unlock()
	return &inv, nil
}

func (g *fakeInvoicingGW) GetInvoice(_ context.Context, invoiceID string) (*invoicing.Invoice, error) {
	g.bump("GetInvoice")
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, inv := range g.invoices {
		if inv.ID == invoiceID {
			clone := inv
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (g *fakeInvoicingGW) ListInvoices(_ context.Context, _ string) ([]invoicing.Invoice, error) {
	g.bump("ListInvoices")
	if g.listInvoicesErr != nil {
		return nil, g.listInvoicesErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]invoicing.Invoice(nil), g.invoices...), nil
}

func (g *fakeInvoicingGW) UpdateInvoiceStatus(_ context.Context, invoiceID, status string) error {
	g.bump("UpdateInvoiceStatus")
	if g.updateStatusErr != nil {
		return g.updateStatusErr
	}
	g.mu.Lock()
	g.updatedStatuses = append(g.updatedStatuses, invoiceID+":"+status)
	g.mu.Unlock()
	return nil
}

func (g *fakeInvoicingGW) GetInvoiceDocumentURL(_ context.Context, _ string) (*string, error) {
	g.bump("GetInvoiceDocumentURL")
	if g.docErr != nil {
		return nil, g.docErr
	}
	return g.docURL, nil
}

// fakePaymentGW mirrors fakeInvoicingGW for the payment provider.
type fakePaymentGW struct {
	mu       sync.Mutex
	calls    map[string]int
	payments []payments.Payment

	createPaymentErr error
	listPaymentsErr  error
}

func newFakePaymentGW() *fakePaymentGW {
	return &fakePaymentGW{calls: make(map[string]int)}
}

func (g *fakePaymentGW) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakePaymentGW) bump(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[name]++
}

func (g *fakePaymentGW) CreateMandate(_ context.Context, in payments.CreateMandateInput) (*payments.Mandate, error) {
	g.bump("CreateMandate")
	return &payments.Mandate{ID: "mandate_" + in.CustomerEmail, Status: "pending_submission"}, nil
}

func (g *fakePaymentGW) GetMandate(_ context.Context, mandateID string) (*payments.Mandate, error) {
	g.bump("GetMandate")
	return &payments.Mandate{ID: mandateID, Status: "active"}, nil
}

func (g *fakePaymentGW) CreatePayment(_ context.Context, in payments.CreatePaymentInput) (*payments.Payment, error) {
	g.bump("CreatePayment")
	if g.createPaymentErr != nil {
		return nil, g.createPaymentErr
	}
	pay := payments.Payment{
		ID:          "pay_" + in.Reference,
		MandateID:   in.MandateID,
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Status:      payments.PaymentStatusPendingSubmission,
		Reference:   in.Reference,
		CreatedAt:   time.Now(),
	}
	g.mu.Lock()
	g.payments = append(g.payments, pay)
	g.mu.Unlock()
	return &pay, nil
}

func (g *fakePaymentGW) ListPayments(_ context.Context, _ string) ([]payments.Payment, error) {
	g.bump("ListPayments")
	if g.listPaymentsErr != nil {
		return nil, g.listPaymentsErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payments.Payment(nil), g.payments...), nil
}

// fakeSyncCache is a plain map cache without expiry.
type fakeSyncCache struct {
	mu      sync.Mutex
	entries map[uint]*SyncResult
}

func newFakeSyncCache() *fakeSyncCache {
	return &fakeSyncCache{entries: make(map[uint]*SyncResult)}
}

func (c *fakeSyncCache) Get(_ context.Context, customerID uint) (*SyncResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[customerID]
	if !ok {
		return nil, false
	}
	clone := *res
	return &clone, true
}

func (c *fakeSyncCache) Set(_ context.Context, customerID uint, result *SyncResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := *result
	c.entries[customerID] = &clone
}
