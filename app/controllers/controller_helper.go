package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ledgerlink/ledgerlink/internal/pkg/billing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
)

// Services carries the wired service instances the handlers run against.
// Queue may be nil in tests that do not exercise background jobs.
type Services struct {
	Orchestrator *billing.Orchestrator
	Sync         *billing.SyncService
	Webhook      *billing.WebhookProcessor
	PaymentGW    payments.Gateway
	Queue        *jobqueue.Queue
}

var services Services

// SetupServices wires the handler package to its service instances.
// Called once from main before the router is installed.
func SetupServices(s Services) {
	services = s
}

// respondBillingError translates the billing core's sentinel errors into
// HTTP responses.
func respondBillingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	case errors.Is(err, billing.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, billing.ErrAuthentication):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": err.Error()})
	case errors.Is(err, billing.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": err.Error()})
	case errors.Is(err, billing.ErrExternalService):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "external_service_error", "message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Unexpected error"})
	}
}

// respondRepositoryError translates GORM errors from the read-side
// repositories.
func respondRepositoryError(c *fiber.Ctx, err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": what + " not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load " + what})
}

// parseIDParam parses a positive integer path parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}

// parsePagination reads offset/limit query parameters with sane bounds.
func parsePagination(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", 25)
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return offset, limit
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
