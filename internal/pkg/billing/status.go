package billing

import (
	"strings"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
)

// Canonical mapping tables between provider vocabulary and local state.
// Unrecognized inputs return ok=false and are skipped by callers instead
// of being guessed at.

// PaymentActionToBillingStatus maps a webhook event action for a payment
// resource to the local billing status.
func PaymentActionToBillingStatus(action string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "created", "submitted", "resubmission_requested":
		return models.BillingStatusPending, true
	case payments.PaymentStatusConfirmed, payments.PaymentStatusPaidOut:
		return models.BillingStatusPaid, true
	case payments.PaymentStatusFailed, payments.PaymentStatusChargedBack:
		return models.BillingStatusFailed, true
	case payments.PaymentStatusCancelled:
		return models.BillingStatusCancelled, true
	default:
		return "", false
	}
}

// PaymentStatusToBillingStatus maps a listed payment's status (pull path)
// to the local billing status.
func PaymentStatusToBillingStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case payments.PaymentStatusPendingSubmission, payments.PaymentStatusSubmitted:
		return models.BillingStatusPending, true
	case payments.PaymentStatusConfirmed, payments.PaymentStatusPaidOut:
		return models.BillingStatusPaid, true
	case payments.PaymentStatusFailed, payments.PaymentStatusChargedBack:
		return models.BillingStatusFailed, true
	case payments.PaymentStatusCancelled:
		return models.BillingStatusCancelled, true
	default:
		return "", false
	}
}

// InvoiceStatusToBillingStatus maps a remote invoice status (pull path)
// to the local billing status.
func InvoiceStatusToBillingStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case invoicing.InvoiceStatusDraft, invoicing.InvoiceStatusOpen, invoicing.InvoiceStatusOverdue:
		return models.BillingStatusPending, true
	case invoicing.InvoiceStatusPaid:
		return models.BillingStatusPaid, true
	case invoicing.InvoiceStatusCancelled:
		return models.BillingStatusCancelled, true
	default:
		return "", false
	}
}

// MandateActionToMandateStatus maps a webhook event action for a mandate
// resource to the local mandate status.
func MandateActionToMandateStatus(action string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "created":
		return models.MandateStatusPendingSubmission, true
	case "submitted":
		return models.MandateStatusSubmitted, true
	case "active", "reinstated":
		return models.MandateStatusActive, true
	case "failed":
		return models.MandateStatusFailed, true
	case "cancelled":
		return models.MandateStatusCancelled, true
	case "expired":
		return models.MandateStatusExpired, true
	default:
		return "", false
	}
}
