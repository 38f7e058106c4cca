package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/billing"
)

const webhookTestSecret = "whsec_handler_test"

// stubWebhookRepo implements only the Repository methods the webhook
// flow touches; anything else panics via the embedded nil interface.
type stubWebhookRepo struct {
	billing.Repository
	events map[string]*models.PaymentWebhookEvent
	nextID uint
}

func newStubWebhookRepo() *stubWebhookRepo {
	return &stubWebhookRepo{events: make(map[string]*models.PaymentWebhookEvent)}
}

func (r *stubWebhookRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := r.events[key]; ok {
		return false, existing, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[key] = event
	return true, event, nil
}

func (r *stubWebhookRepo) MarkWebhookProcessed(_ context.Context, _ uint, _ string) error {
	return nil
}

func (r *stubWebhookRepo) GetBillingRecordByExternalPaymentID(_ context.Context, _ string) (*models.BillingRecord, error) {
	return nil, billing.ErrNotFound
}

func signWebhookBody(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookTestApp() *fiber.App {
	SetupServices(Services{
		Webhook: billing.NewWebhookProcessor(newStubWebhookRepo(), nil, webhookTestSecret),
	})

	app := fiber.New()
	app.Post("/webhooks/payments", HandlePaymentWebhook)
	return app
}

func TestHandlePaymentWebhookMissingSignature(t *testing.T) {
	app := newWebhookTestApp()

	req := httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(`{}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandlePaymentWebhookBadSignature(t *testing.T) {
	app := newWebhookTestApp()

	req := httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(`{"events":[]}`))
	req.Header.Set(SignatureHeader, "deadbeef")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandlePaymentWebhookAcknowledgesBatch(t *testing.T) {
	app := newWebhookTestApp()
	body := `{"events":[{"id":"EV1","resource_type":"payment","resource_id":"PM_UNKNOWN","action":"confirmed"}]}`

	req := httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(body))
	req.Header.Set(SignatureHeader, signWebhookBody(body))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Processed int  `json:"processed"`
		Duplicate bool `json:"duplicate"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, 1, payload.Processed)
	assert.False(t, payload.Duplicate)

	// Redelivered batch is acknowledged as a duplicate.
	req = httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(body))
	req.Header.Set(SignatureHeader, signWebhookBody(body))
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Duplicate)
}

func TestHandlePaymentWebhookMalformedPayload(t *testing.T) {
	app := newWebhookTestApp()
	body := `{"events":[]}`

	req := httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(body))
	req.Header.Set(SignatureHeader, signWebhookBody(body))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
