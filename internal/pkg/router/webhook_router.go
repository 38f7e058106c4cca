package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ledgerlink/ledgerlink/app/controllers"
)

type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.SendString("ok")
	})

	// Authenticated by HMAC signature, not by session or API key.
	app.Post("/webhooks/payments", controllers.HandlePaymentWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
