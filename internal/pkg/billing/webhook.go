package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
)

// WebhookProcessor ingests asynchronous payment-provider event batches
// and merges them into local state exactly once.
type WebhookProcessor struct {
	repo      Repository
	invoiceGW invoicing.Gateway
	provider  string
	secret    string
}

func NewWebhookProcessor(repo Repository, invoiceGW invoicing.Gateway, webhookSecret string) *WebhookProcessor {
	return &WebhookProcessor{
		repo:      repo,
		invoiceGW: invoiceGW,
		provider:  models.PaymentProviderDefault,
		secret:    webhookSecret,
	}
}

// ProcessPaymentEvents verifies the batch signature, persists the raw
// batch for replay-level deduplication, then applies each event. A bad
// signature rejects the whole batch; per-event failures are logged and
// never abort the remaining events, because the provider expects a fast
// acknowledgment.
func (p *WebhookProcessor) ProcessPaymentEvents(ctx context.Context, rawBody []byte, signatureHeader string) (*ProcessResult, error) {
	if !payments.VerifyWebhookSignature(rawBody, signatureHeader, p.secret) {
		return nil, fmt.Errorf("%w: webhook signature mismatch", ErrAuthentication)
	}

	sum := sha256.Sum256(rawBody)
	created, stored, err := p.repo.CreateWebhookEventIfNotExists(ctx, &models.PaymentWebhookEvent{
		Provider:        p.provider,
		ProviderEventID: "hash:" + hex.EncodeToString(sum[:]),
		EventType:       "payment_events",
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		log.Infof("[Webhook] duplicate batch %d, acknowledging without reprocessing", stored.ID)
		return &ProcessResult{Duplicate: true}, nil
	}

	payload, err := payments.ParseWebhookPayload(rawBody)
	if err != nil {
		_ = p.repo.MarkWebhookProcessed(ctx, stored.ID, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	processed := 0
	for _, event := range payload.Events {
		var evErr error
		switch event.ResourceType {
		case payments.ResourceTypePayment:
			evErr = p.applyPaymentEvent(ctx, event)
		case payments.ResourceTypeMandate:
			evErr = p.applyMandateEvent(ctx, event)
		default:
			log.Infof("[Webhook] ignoring event %s with resource type %q", event.ID, event.ResourceType)
			continue
		}
		if evErr != nil {
			log.Errorf("[Webhook] event %s (%s %s) failed: %v", event.ID, event.ResourceType, event.ResourceID, evErr)
			continue
		}
		processed++
	}

	_ = p.repo.MarkWebhookProcessed(ctx, stored.ID, "")
	return &ProcessResult{EventsProcessed: processed}, nil
}

// applyPaymentEvent updates the matching billing record's status. The
// update is idempotent: a re-delivered event finds the status already
// applied and becomes a no-op, so invoice-paid propagation runs at most
// once per transition.
func (p *WebhookProcessor) applyPaymentEvent(ctx context.Context, event payments.WebhookEvent) error {
	status, ok := PaymentActionToBillingStatus(event.Action)
	if !ok {
		log.Warnf("[Webhook] unrecognized payment action %q for %s, skipping", event.Action, event.ResourceID)
		return nil
	}

	record, err := p.repo.GetBillingRecordByExternalPaymentID(ctx, event.ResourceID)
	if err != nil {
		if err == ErrNotFound {
			// The payment may not be synced locally yet; reconciliation
			// will pick it up.
			log.Infof("[Webhook] no local record for payment %s, skipping", event.ResourceID)
			return nil
		}
		return err
	}

	if record.Status == status {
		return nil
	}
	if models.IsTerminalBillingStatus(record.Status) {
		log.Warnf("[Webhook] record %d already terminal (%s), ignoring transition to %s", record.ID, record.Status, status)
		return nil
	}

	var paidAt *time.Time
	if status == models.BillingStatusPaid {
		t := event.CreatedAt
		if t.IsZero() {
			t = time.Now()
		}
		paidAt = &t
	}
	if err := p.repo.UpdateBillingRecordStatus(ctx, record.ID, status, paidAt); err != nil {
		return err
	}

	if status == models.BillingStatusPaid {
		p.propagateInvoicePaid(ctx, record)
	}
	return nil
}

// propagateInvoicePaid is best-effort: the provider requires a fast 2xx,
// so a failed propagation is logged and left to reconciliation.
func (p *WebhookProcessor) propagateInvoicePaid(ctx context.Context, record *models.BillingRecord) {
	if record.ExternalInvoiceID == nil || *record.ExternalInvoiceID == "" {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	if err := p.invoiceGW.UpdateInvoiceStatus(callCtx, *record.ExternalInvoiceID, invoicing.InvoiceStatusPaid); err != nil {
		log.Errorf("[Webhook] invoice-paid propagation failed for invoice %s: %v", *record.ExternalInvoiceID, err)
	}
}

func (p *WebhookProcessor) applyMandateEvent(ctx context.Context, event payments.WebhookEvent) error {
	status, ok := MandateActionToMandateStatus(event.Action)
	if !ok {
		log.Warnf("[Webhook] unrecognized mandate action %q for %s, skipping", event.Action, event.ResourceID)
		return nil
	}

	customer, err := p.repo.GetCustomerByMandateID(ctx, event.ResourceID)
	if err != nil {
		if err == ErrNotFound {
			log.Infof("[Webhook] no customer linked to mandate %s, skipping", event.ResourceID)
			return nil
		}
		return err
	}

	if customer.MandateStatus == status {
		return nil
	}
	customer.MandateStatus = status
	now := time.Now()
	customer.MandateUpdatedAt = &now
	return p.repo.SaveCustomer(ctx, customer)
}
