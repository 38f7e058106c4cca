package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
)

// SyncCache rate-limits reconciliation per customer. Implementations own
// the freshness window; a stale or missing entry returns ok=false. The
// cache is a throttle, never a source of truth.
type SyncCache interface {
	Get(ctx context.Context, customerID uint) (*SyncResult, bool)
	Set(ctx context.Context, customerID uint, result *SyncResult)
}

// SyncService is the pull-based counterpart to the webhook processor:
// it fetches the external invoice and payment sets for a customer and
// upserts missing local records.
type SyncService struct {
	repo      Repository
	invoiceGW invoicing.Gateway
	paymentGW payments.Gateway
	cache     SyncCache
}

func NewSyncService(repo Repository, invoiceGW invoicing.Gateway, paymentGW payments.Gateway, cache SyncCache) *SyncService {
	return &SyncService{
		repo:      repo,
		invoiceGW: invoiceGW,
		paymentGW: paymentGW,
		cache:     cache,
	}
}

// SyncCustomer reconciles local records against the external services.
// A fresh cache entry short-circuits without any gateway call. Failure
// of one sub-source (invoices or payments) does not block the other.
func (s *SyncService) SyncCustomer(ctx context.Context, customerID uint) (*SyncResult, error) {
	if cached, ok := s.cache.Get(ctx, customerID); ok {
		cached.FromCache = true
		return cached, nil
	}

	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		CustomerID: customerID,
		SyncedAt:   time.Now(),
	}

	invErr := s.syncInvoices(ctx, customer, result)
	payErr := s.syncPayments(ctx, customer, result)
	if invErr != nil {
		log.Errorf("[Sync] invoice reconciliation failed for customer %d: %v", customerID, invErr)
	}
	if payErr != nil {
		log.Errorf("[Sync] payment reconciliation failed for customer %d: %v", customerID, payErr)
	}
	if invErr != nil && payErr != nil {
		return nil, fmt.Errorf("%w: invoices: %v; payments: %v", ErrExternalService, invErr, payErr)
	}

	s.cache.Set(ctx, customerID, result)
	return result, nil
}

func (s *SyncService) syncInvoices(ctx context.Context, customer *models.Customer, result *SyncResult) error {
	partyID, err := s.resolvePartyID(ctx, customer)
	if err != nil {
		return err
	}
	if partyID == "" {
		// Customer has never been invoiced externally.
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()
	invoices, err := s.invoiceGW.ListInvoices(callCtx, partyID)
	if err != nil {
		return err
	}

	for _, inv := range invoices {
		result.InvoicesSynced++
		if err := s.upsertFromInvoice(ctx, customer, inv, result); err != nil {
			log.Errorf("[Sync] invoice %s upsert failed: %v", inv.ID, err)
		}
	}
	return nil
}

func (s *SyncService) upsertFromInvoice(ctx context.Context, customer *models.Customer, inv invoicing.Invoice, result *SyncResult) error {
	status, ok := InvoiceStatusToBillingStatus(inv.Status)
	if !ok {
		log.Warnf("[Sync] unrecognized invoice status %q for %s, skipping", inv.Status, inv.ID)
		return nil
	}

	existing, err := s.repo.GetBillingRecordByExternalInvoiceID(ctx, inv.ID)
	if err != nil && err != ErrNotFound {
		return err
	}
	if existing != nil {
		// Overwrite only when the external state actually changed; this
		// is the one path allowed to move a record out of a terminal
		// state, because the external ledger is the source of record.
		if existing.Status != status {
			return s.repo.UpdateBillingRecordStatus(ctx, existing.ID, status, inv.PaidAt)
		}
		return nil
	}

	record := &models.BillingRecord{
		UUID:              uuid.NewString(),
		CustomerID:        customer.ID,
		ExternalInvoiceID: &inv.ID,
		AmountMinor:       inv.TotalMinor,
		Currency:          inv.Currency,
		Status:            status,
		Description:       inv.Description,
		DueDate:           inv.DueDate,
	}
	if status == models.BillingStatusPaid {
		record.PaidAt = inv.PaidAt
	}
	receipt := &models.Receipt{UUID: uuid.NewString()}

	created, err := s.repo.CreateBillingCycle(ctx, record, receipt)
	if err != nil {
		return err
	}
	if created {
		result.RecordsCreated++
	}
	// created=false means a concurrent writer won the race: success-no-op.
	return nil
}

func (s *SyncService) syncPayments(ctx context.Context, customer *models.Customer, result *SyncResult) error {
	if customer.ExternalMandateID == nil || *customer.ExternalMandateID == "" {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()
	pays, err := s.paymentGW.ListPayments(callCtx, *customer.ExternalMandateID)
	if err != nil {
		return err
	}

	for _, pay := range pays {
		result.PaymentsSynced++
		if err := s.upsertFromPayment(ctx, customer, pay, result); err != nil {
			log.Errorf("[Sync] payment %s upsert failed: %v", pay.ID, err)
		}
	}
	return nil
}

func (s *SyncService) upsertFromPayment(ctx context.Context, customer *models.Customer, pay payments.Payment, result *SyncResult) error {
	status, ok := PaymentStatusToBillingStatus(pay.Status)
	if !ok {
		log.Warnf("[Sync] unrecognized payment status %q for %s, skipping", pay.Status, pay.ID)
		return nil
	}

	existing, err := s.repo.GetBillingRecordByExternalPaymentID(ctx, pay.ID)
	if err != nil && err != ErrNotFound {
		return err
	}
	if existing != nil {
		if existing.Status != status {
			return s.repo.UpdateBillingRecordStatus(ctx, existing.ID, status, pay.ChargedAt)
		}
		return nil
	}

	// Payments created by the orchestrator reference their invoice id;
	// attach the payment to that record instead of creating a second one.
	if pay.Reference != "" {
		if byInvoice, err := s.repo.GetBillingRecordByExternalInvoiceID(ctx, pay.Reference); err == nil {
			return s.repo.SetBillingRecordExternalPaymentID(ctx, byInvoice.ID, pay.ID)
		} else if err != ErrNotFound {
			return err
		}
	}

	record := &models.BillingRecord{
		UUID:              uuid.NewString(),
		CustomerID:        customer.ID,
		ExternalPaymentID: &pay.ID,
		AmountMinor:       pay.AmountMinor,
		Currency:          pay.Currency,
		Status:            status,
		Description:       pay.Description,
	}
	if status == models.BillingStatusPaid {
		record.PaidAt = pay.ChargedAt
	}
	receipt := &models.Receipt{UUID: uuid.NewString()}

	created, err := s.repo.CreateBillingCycle(ctx, record, receipt)
	if err != nil {
		return err
	}
	if created {
		result.RecordsCreated++
	}
	return nil
}

func (s *SyncService) resolvePartyID(ctx context.Context, customer *models.Customer) (string, error) {
	if customer.ExternalPartyID != nil && *customer.ExternalPartyID != "" {
		return *customer.ExternalPartyID, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()
	party, err := s.invoiceGW.FindPartyByEmail(callCtx, customer.Email)
	if err != nil {
		return "", err
	}
	if party == nil {
		return "", nil
	}

	customer.ExternalPartyID = &party.ID
	if err := s.repo.SaveCustomer(ctx, customer); err != nil {
		log.Warnf("[Sync] failed to persist party id %s for customer %d: %v", party.ID, customer.ID, err)
	}
	return party.ID, nil
}
