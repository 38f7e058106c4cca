package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Payment statuses as reported by the payment provider.
const (
	PaymentStatusPendingSubmission = "pending_submission"
	PaymentStatusSubmitted         = "submitted"
	PaymentStatusConfirmed         = "confirmed"
	PaymentStatusPaidOut           = "paid_out"
	PaymentStatusFailed            = "failed"
	PaymentStatusCancelled         = "cancelled"
	PaymentStatusChargedBack       = "charged_back"
)

// Webhook resource types carried in event batches.
const (
	ResourceTypePayment = "payment"
	ResourceTypeMandate = "mandate"
)

// CreateMandateInput starts a collection authorization for a customer.
type CreateMandateInput struct {
	CustomerName  string
	CustomerEmail string
	Reference     string
}

// Mandate is a standing authorization for recurring collection.
type Mandate struct {
	ID        string
	Status    string
	Reference string
	CreatedAt time.Time
}

// CreatePaymentInput requests one collection against a mandate.
type CreatePaymentInput struct {
	MandateID   string
	AmountMinor int64
	Currency    string
	Reference   string
	Description string
}

// Payment is the normalized remote payment shape the core operates on.
type Payment struct {
	ID          string
	MandateID   string
	AmountMinor int64
	Currency    string
	Status      string
	Reference   string
	Description string
	ChargedAt   *time.Time
	CreatedAt   time.Time
}

// Gateway is the capability contract the payment provider must satisfy.
type Gateway interface {
	CreateMandate(ctx context.Context, in CreateMandateInput) (*Mandate, error)
	GetMandate(ctx context.Context, mandateID string) (*Mandate, error)
	CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error)
	ListPayments(ctx context.Context, mandateID string) ([]Payment, error)
}

// WebhookEvent is one status-change notification inside a webhook batch.
type WebhookEvent struct {
	ID           string    `json:"id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Action       string    `json:"action"`
	CreatedAt    time.Time `json:"created_at"`
}

// WebhookPayload is the provider's inbound batch envelope.
type WebhookPayload struct {
	Events []WebhookEvent `json:"events"`
}

// ParseWebhookPayload decodes and normalizes an inbound webhook batch.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if len(payload.Events) == 0 {
		return nil, errors.New("webhook payload contains no events")
	}
	for i := range payload.Events {
		payload.Events[i].ResourceType = strings.ToLower(strings.TrimSpace(payload.Events[i].ResourceType))
		payload.Events[i].ResourceID = strings.TrimSpace(payload.Events[i].ResourceID)
		payload.Events[i].Action = strings.ToLower(strings.TrimSpace(payload.Events[i].Action))
	}
	return &payload, nil
}
