package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCustomer(repo *fakeRepo, mandate bool) *models.Customer {
	customer := &models.Customer{
		UUID:          "c0ffee",
		Name:          "Erika Beispiel",
		Email:         "erika@example.com",
		MandateStatus: models.MandateStatusNone,
	}
	if mandate {
		id := "MD123"
		customer.ExternalMandateID = &id
		customer.MandateStatus = models.MandateStatusActive
	}
	repo.addCustomer(customer)
	return customer
}

func TestCreateBillingCycleWithoutMandate(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo, false)

	o := NewOrchestrator(repo, invGW, payGW)
	due := time.Now().Add(14 * 24 * time.Hour)
	result, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 4990,
		Currency:    "eur",
		Description: "Monthly subscription",
		DueDate:     &due,
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Nil(t, result.Payment)
	assert.Nil(t, result.Record.ExternalPaymentID)
	assert.Equal(t, models.BillingStatusPending, result.Record.Status)
	assert.Equal(t, "EUR", result.Record.Currency)
	require.NotNil(t, result.Record.ExternalInvoiceID)
	assert.Equal(t, result.Invoice.ID, *result.Record.ExternalInvoiceID)

	assert.Equal(t, 0, payGW.count("CreatePayment"))
	assert.Equal(t, 1, repo.recordCount())

	receipt, err := repo.GetReceiptByBillingRecordID(context.Background(), result.Record.ID)
	require.NoError(t, err)
	assert.Nil(t, receipt.DocumentURL)
}

func TestCreateBillingCycleWithActiveMandate(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo, true)

	o := NewOrchestrator(repo, invGW, payGW)
	result, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 12500,
		Currency:    "EUR",
		Description: "Annual plan",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	require.NotNil(t, result.Record.ExternalPaymentID)
	assert.Equal(t, result.Payment.ID, *result.Record.ExternalPaymentID)
	assert.Equal(t, "MD123", result.Payment.MandateID)
	// Payment references the invoice so reconciliation can link them later.
	assert.Equal(t, result.Invoice.ID, result.Payment.Reference)
	assert.Equal(t, 1, payGW.count("CreatePayment"))
}

func TestCreateBillingCycleInvoiceFailureAborts(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	invGW.createInvoiceErr = errors.New("service unavailable")
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo, true)

	o := NewOrchestrator(repo, invGW, payGW)
	result, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 1000,
		Currency:    "EUR",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalService))
	assert.Nil(t, result)
	assert.Equal(t, 0, payGW.count("CreatePayment"))
	assert.Equal(t, 0, repo.recordCount())
}

func TestCreateBillingCyclePaymentFailureStaysPending(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	payGW.createPaymentErr = errors.New("mandate suspended")
	customer := seedCustomer(repo, true)

	o := NewOrchestrator(repo, invGW, payGW)
	result, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 1000,
		Currency:    "EUR",
	})

	require.NoError(t, err)
	assert.Nil(t, result.Payment)
	assert.Nil(t, result.Record.ExternalPaymentID)
	assert.Equal(t, models.BillingStatusPending, result.Record.Status)
	assert.Equal(t, 1, repo.recordCount())
}

func TestCreateBillingCycleReusesStoredPartyID(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo, false)
	partyID := "party_existing"
	customer.ExternalPartyID = &partyID
	repo.addCustomer(customer)

	o := NewOrchestrator(repo, invGW, payGW)
	result, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 500,
		Currency:    "EUR",
	})

	require.NoError(t, err)
	assert.Equal(t, "party_existing", result.Invoice.PartyID)
	assert.Equal(t, 0, invGW.count("FindPartyByEmail"))
	assert.Equal(t, 0, invGW.count("CreateParty"))
}

func TestCreateBillingCycleResolvesPartyOnce(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo, false)

	o := NewOrchestrator(repo, invGW, payGW)
	_, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 500,
		Currency:    "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, invGW.count("CreateParty"))

	// The party id was persisted on the customer, so the second cycle
	// never touches the party endpoints again.
	_, err = o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 500,
		Currency:    "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, invGW.count("FindPartyByEmail"))
	assert.Equal(t, 1, invGW.count("CreateParty"))
}

func TestCreateBillingCycleAttachesDocumentURL(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	url := "https://documents.example.com/inv.pdf"
	invGW.docURL = &url
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo, false)

	o := NewOrchestrator(repo, invGW, payGW)
	result, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 500,
		Currency:    "EUR",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Receipt.DocumentURL)
	assert.Equal(t, url, *result.Receipt.DocumentURL)
	require.NotNil(t, result.Receipt.FileName)
	assert.Contains(t, *result.Receipt.FileName, ".pdf")
}

func TestCreateBillingCycleDocumentFetchFailureIsNonFatal(t *testing.T) {
	repo := newFakeRepo()
	invGW := newFakeInvoicingGW()
	invGW.docErr = errors.New("document service down")
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo, false)

	o := NewOrchestrator(repo, invGW, payGW)
	result, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 500,
		Currency:    "EUR",
	})

	require.NoError(t, err)
	assert.Nil(t, result.Receipt.DocumentURL)
}

type conflictRepo struct {
	*fakeRepo
}

func (r *conflictRepo) CreateBillingCycle(_ context.Context, _ *models.BillingRecord, _ *models.Receipt) (bool, error) {
	return false, nil
}

func TestCreateBillingCyclePersistCollisionIsConflict(t *testing.T) {
	repo := &conflictRepo{newFakeRepo()}
	invGW := newFakeInvoicingGW()
	payGW := newFakePaymentGW()
	customer := seedCustomer(repo.fakeRepo, false)

	o := NewOrchestrator(repo, invGW, payGW)
	_, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  customer.ID,
		AmountMinor: 500,
		Currency:    "EUR",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestCreateBillingCycleUnknownCustomer(t *testing.T) {
	o := NewOrchestrator(newFakeRepo(), newFakeInvoicingGW(), newFakePaymentGW())
	_, err := o.CreateBillingCycle(context.Background(), CreateCycleInput{
		CustomerID:  42,
		AmountMinor: 500,
		Currency:    "EUR",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCreateBillingCycleValidation(t *testing.T) {
	o := NewOrchestrator(newFakeRepo(), newFakeInvoicingGW(), newFakePaymentGW())

	tests := []struct {
		name  string
		input CreateCycleInput
	}{
		{"missing customer", CreateCycleInput{AmountMinor: 100, Currency: "EUR"}},
		{"negative amount", CreateCycleInput{CustomerID: 1, AmountMinor: -1, Currency: "EUR"}},
		{"bad currency", CreateCycleInput{CustomerID: 1, AmountMinor: 100, Currency: "EURO"}},
		{"empty currency", CreateCycleInput{CustomerID: 1, AmountMinor: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.CreateBillingCycle(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}
