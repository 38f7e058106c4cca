package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
)

// externalCallTimeout bounds every single gateway call.
const externalCallTimeout = 10 * time.Second

// Orchestrator creates one consistent billing cycle across the local
// ledger, the invoicing service and the payment provider. It is not
// idempotent: callers needing request-level idempotency must de-duplicate
// by their own reference before invoking it.
type Orchestrator struct {
	repo      Repository
	invoiceGW invoicing.Gateway
	paymentGW payments.Gateway
}

func NewOrchestrator(repo Repository, invoiceGW invoicing.Gateway, paymentGW payments.Gateway) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		invoiceGW: invoiceGW,
		paymentGW: paymentGW,
	}
}

// CreateBillingCycle runs the cycle steps in order: load customer,
// resolve invoicing party, create invoice, optionally create payment,
// persist record + receipt. Invoice failure aborts the cycle; payment
// failure does not (a mandate-less or declined customer is a normal
// business state).
func (o *Orchestrator) CreateBillingCycle(ctx context.Context, in CreateCycleInput) (*CycleResult, error) {
	if err := validateCycleInput(in); err != nil {
		return nil, err
	}

	customer, err := o.repo.GetCustomerByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	partyID, err := o.resolveInvoicingParty(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve invoicing party: %v", ErrExternalService, err)
	}

	reference := "cycle-" + uuid.NewString()
	invoice, err := o.createInvoice(ctx, partyID, reference, in)
	if err != nil {
		// No partial BillingRecord without a durable invoice reference.
		return nil, fmt.Errorf("%w: create invoice: %v", ErrExternalService, err)
	}

	var payment *payments.Payment
	if customer.HasActiveMandate() {
		payment, err = o.createPayment(ctx, customer, invoice, in)
		if err != nil {
			log.Warnf("[Billing] payment creation failed for customer %d, cycle stays pending: %v", customer.ID, err)
			payment = nil
		}
	} else {
		log.Infof("[Billing] customer %d has no active mandate, cycle created without payment", customer.ID)
	}

	record := &models.BillingRecord{
		UUID:              uuid.NewString(),
		CustomerID:        customer.ID,
		ExternalInvoiceID: &invoice.ID,
		AmountMinor:       in.AmountMinor,
		Currency:          strings.ToUpper(strings.TrimSpace(in.Currency)),
		Status:            models.BillingStatusPending,
		Description:       in.Description,
		DueDate:           in.DueDate,
	}
	if payment != nil {
		record.ExternalPaymentID = &payment.ID
	}

	receipt := &models.Receipt{
		UUID: uuid.NewString(),
	}
	// Document generation is asynchronous on the remote side; a missing
	// URL here is expected and backfilled later.
	if docURL, docErr := o.fetchDocumentURL(ctx, invoice.ID); docErr != nil {
		log.Warnf("[Billing] document url fetch failed for invoice %s: %v", invoice.ID, docErr)
	} else if docURL != nil {
		receipt.DocumentURL = docURL
		name := fmt.Sprintf("%s.pdf", reference)
		receipt.FileName = &name
	}

	created, err := o.repo.CreateBillingCycle(ctx, record, receipt)
	if err != nil {
		return nil, err
	}
	if !created {
		// Can only happen when an external id landed locally through a
		// concurrent sync between invoice creation and persistence.
		log.Warnf("[Billing] cycle persist collided on external ids (invoice %s), treating as conflict", invoice.ID)
		return nil, ErrConflict
	}

	return &CycleResult{
		Record:  record,
		Receipt: receipt,
		Invoice: invoice,
		Payment: payment,
	}, nil
}

func (o *Orchestrator) resolveInvoicingParty(ctx context.Context, customer *models.Customer) (string, error) {
	if customer.ExternalPartyID != nil && *customer.ExternalPartyID != "" {
		return *customer.ExternalPartyID, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	// Idempotent resolve: look up by the stable email key before creating.
	party, err := o.invoiceGW.FindPartyByEmail(callCtx, customer.Email)
	if err != nil {
		return "", err
	}
	if party == nil {
		party, err = o.invoiceGW.CreateParty(callCtx, invoicing.PartyProfile{
			Name:  customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
		})
		if err != nil {
			return "", err
		}
	}

	customer.ExternalPartyID = &party.ID
	if saveErr := o.repo.SaveCustomer(ctx, customer); saveErr != nil {
		// The party exists remotely; losing the local link is recoverable
		// on the next resolve.
		log.Warnf("[Billing] failed to persist party id %s for customer %d: %v", party.ID, customer.ID, saveErr)
	}
	return party.ID, nil
}

func (o *Orchestrator) createInvoice(ctx context.Context, partyID, reference string, in CreateCycleInput) (*invoicing.Invoice, error) {
	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	lineItems := in.LineItems
	if len(lineItems) == 0 {
		lineItems = []invoicing.LineItem{{
			Name:            in.Description,
			Quantity:        1,
			UnitAmountMinor: in.AmountMinor,
		}}
	}

	return o.invoiceGW.CreateInvoice(callCtx, invoicing.CreateInvoiceInput{
		PartyID:   partyID,
		Reference: reference,
		Currency:  in.Currency,
		DueDate:   in.DueDate,
		LineItems: lineItems,
	})
}

func (o *Orchestrator) createPayment(ctx context.Context, customer *models.Customer, invoice *invoicing.Invoice, in CreateCycleInput) (*payments.Payment, error) {
	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	return o.paymentGW.CreatePayment(callCtx, payments.CreatePaymentInput{
		MandateID:   *customer.ExternalMandateID,
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Reference:   invoice.ID,
		Description: in.Description,
	})
}

func (o *Orchestrator) fetchDocumentURL(ctx context.Context, invoiceID string) (*string, error) {
	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	return o.invoiceGW.GetInvoiceDocumentURL(callCtx, invoiceID)
}

func validateCycleInput(in CreateCycleInput) error {
	if in.CustomerID == 0 {
		return fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if in.AmountMinor < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if len(strings.TrimSpace(in.Currency)) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	}
	return nil
}
