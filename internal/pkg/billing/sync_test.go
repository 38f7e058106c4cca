package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSyncCustomer(repo *fakeRepo) *models.Customer {
	partyID := "party_1"
	mandateID := "MD1"
	customer := &models.Customer{
		UUID:              "cu-sync",
		Name:              "Erika Beispiel",
		Email:             "erika@example.com",
		ExternalPartyID:   &partyID,
		ExternalMandateID: &mandateID,
		MandateStatus:     models.MandateStatusActive,
	}
	repo.addCustomer(customer)
	return customer
}

func TestSyncCustomerCreatesMissingRecords(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedSyncCustomer(repo)

	paidAt := time.Now().Add(-time.Hour)
	invGW.invoices = []invoicing.Invoice{
		{ID: "INV1", PartyID: "party_1", Status: invoicing.InvoiceStatusOpen, TotalMinor: 4990, Currency: "EUR"},
		{ID: "INV2", PartyID: "party_1", Status: invoicing.InvoiceStatusPaid, TotalMinor: 1200, Currency: "EUR", PaidAt: &paidAt},
	}
	payGW.payments = []payments.Payment{
		{ID: "PM1", MandateID: "MD1", Status: payments.PaymentStatusSubmitted, AmountMinor: 900, Currency: "EUR"},
	}

	s := NewSyncService(repo, invGW, payGW, newFakeSyncCache())
	result, err := s.SyncCustomer(context.Background(), customer.ID)

	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, result.InvoicesSynced)
	assert.Equal(t, 1, result.PaymentsSynced)
	assert.Equal(t, 3, result.RecordsCreated)
	assert.Equal(t, 3, repo.recordCount())

	paid, err := repo.GetBillingRecordByExternalInvoiceID(context.Background(), "INV2")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
}

func TestSyncCustomerCacheShortCircuits(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedSyncCustomer(repo)
	invGW.invoices = []invoicing.Invoice{
		{ID: "INV1", PartyID: "party_1", Status: invoicing.InvoiceStatusOpen, TotalMinor: 100, Currency: "EUR"},
	}

	s := NewSyncService(repo, invGW, payGW, newFakeSyncCache())
	first, err := s.SyncCustomer(context.Background(), customer.ID)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := s.SyncCustomer(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.InvoicesSynced, second.InvoicesSynced)

	// The cached run makes zero gateway calls.
	assert.Equal(t, 1, invGW.count("ListInvoices"))
	assert.Equal(t, 1, payGW.count("ListPayments"))
}

func TestSyncCustomerUpdatesChangedStatus(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedSyncCustomer(repo)

	invoiceID := "INV1"
	record := &models.BillingRecord{
		UUID:              "rec-1",
		CustomerID:        customer.ID,
		ExternalInvoiceID: &invoiceID,
		AmountMinor:       4990,
		Currency:          "EUR",
		Status:            models.BillingStatusPending,
	}
	created, err := repo.CreateBillingCycle(context.Background(), record, &models.Receipt{UUID: "rcp-1"})
	require.NoError(t, err)
	require.True(t, created)

	paidAt := time.Now()
	invGW.invoices = []invoicing.Invoice{
		{ID: "INV1", PartyID: "party_1", Status: invoicing.InvoiceStatusPaid, TotalMinor: 4990, Currency: "EUR", PaidAt: &paidAt},
	}

	s := NewSyncService(repo, invGW, payGW, newFakeSyncCache())
	result, err := s.SyncCustomer(context.Background(), customer.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsCreated)
	assert.Equal(t, 1, repo.recordCount())
	assert.Equal(t, models.BillingStatusPaid, repo.recordByID(record.ID).Status)
}

func TestSyncCustomerLinksPaymentToInvoiceRecord(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedSyncCustomer(repo)

	invoiceID := "INV1"
	record := &models.BillingRecord{
		UUID:              "rec-1",
		CustomerID:        customer.ID,
		ExternalInvoiceID: &invoiceID,
		AmountMinor:       4990,
		Currency:          "EUR",
		Status:            models.BillingStatusPending,
	}
	created, err := repo.CreateBillingCycle(context.Background(), record, &models.Receipt{UUID: "rcp-1"})
	require.NoError(t, err)
	require.True(t, created)

	// The payment carries the invoice id as reference, so it must attach
	// to the existing record instead of creating a second one.
	payGW.payments = []payments.Payment{
		{ID: "PM1", MandateID: "MD1", Status: payments.PaymentStatusSubmitted, Reference: "INV1", AmountMinor: 4990, Currency: "EUR"},
	}

	s := NewSyncService(repo, invGW, payGW, newFakeSyncCache())
	result, err := s.SyncCustomer(context.Background(), customer.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsCreated)
	assert.Equal(t, 1, repo.recordCount())

	linked := repo.recordByID(record.ID)
	require.NotNil(t, linked.ExternalPaymentID)
	assert.Equal(t, "PM1", *linked.ExternalPaymentID)
}

func TestSyncCustomerOneSourceFailureIsPartial(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedSyncCustomer(repo)

	invGW.listInvoicesErr = errors.New("invoicing down")
	payGW.payments = []payments.Payment{
		{ID: "PM1", MandateID: "MD1", Status: payments.PaymentStatusSubmitted, AmountMinor: 900, Currency: "EUR"},
	}

	s := NewSyncService(repo, invGW, payGW, newFakeSyncCache())
	result, err := s.SyncCustomer(context.Background(), customer.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, result.InvoicesSynced)
	assert.Equal(t, 1, result.PaymentsSynced)
	assert.Equal(t, 1, result.RecordsCreated)
}

func TestSyncCustomerBothSourcesFailing(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedSyncCustomer(repo)
	cache := newFakeSyncCache()

	invGW.listInvoicesErr = errors.New("invoicing down")
	payGW.listPaymentsErr = errors.New("payments down")

	s := NewSyncService(repo, invGW, payGW, cache)
	_, err := s.SyncCustomer(context.Background(), customer.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalService))

	// A failed run must not be cached.
	_, ok := cache.Get(context.Background(), customer.ID)
	assert.False(t, ok)
}

func TestSyncCustomerWithoutExternalLinks(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := &models.Customer{
		UUID:          "cu-new",
		Name:          "New Customer",
		Email:         "new@example.com",
		MandateStatus: models.MandateStatusNone,
	}
	repo.addCustomer(customer)

	s := NewSyncService(repo, invGW, payGW, newFakeSyncCache())
	result, err := s.SyncCustomer(context.Background(), customer.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, result.InvoicesSynced)
	assert.Equal(t, 0, result.PaymentsSynced)
	// No party is ever created during sync, only looked up.
	assert.Equal(t, 1, invGW.count("FindPartyByEmail"))
	assert.Equal(t, 0, invGW.count("CreateParty"))
	assert.Equal(t, 0, invGW.count("ListInvoices"))
	assert.Equal(t, 0, payGW.count("ListPayments"))
}

func TestSyncCustomerUnknownCustomer(t *testing.T) {
	s := NewSyncService(newFakeRepo(), newFakeInvoicingGW(), newFakePaymentGW(), newFakeSyncCache())
	_, err := s.SyncCustomer(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSyncCustomerSkipsUnknownStatuses(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedSyncCustomer(repo)

	invGW.invoices = []invoicing.Invoice{
		{ID: "INV1", PartyID: "party_1", Status: "disputed", TotalMinor: 100, Currency: "EUR"},
	}

	s := NewSyncService(repo, invGW, payGW, newFakeSyncCache())
	result, err := s.SyncCustomer(context.Background(), customer.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.InvoicesSynced)
	assert.Equal(t, 0, result.RecordsCreated)
	assert.Equal(t, 0, repo.recordCount())
}
