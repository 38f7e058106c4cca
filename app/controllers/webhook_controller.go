package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the provider's HMAC over the raw request body.
const SignatureHeader = "Webhook-Signature"

// HandlePaymentWebhook ingests a payment-provider event batch. The
// provider expects a fast 2xx: a duplicate batch is acknowledged without
// reprocessing, and per-event failures never surface here.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	signature := c.Get(SignatureHeader)
	if signature == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing webhook signature"})
	}

	// BodyParser would re-serialize; signature verification needs the
	// exact raw bytes.
	result, err := services.Webhook.ProcessPaymentEvents(c.UserContext(), c.Body(), signature)
	if err != nil {
		return respondBillingError(c, err)
	}

	return c.JSON(fiber.Map{
		"processed": result.EventsProcessed,
		"duplicate": result.Duplicate,
	})
}
