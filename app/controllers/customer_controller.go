package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/payments"
)

// CreateCustomerRequest is the POST body for customer creation.
type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// HandleCreateCustomer creates a local customer. External party and
// mandate links are established lazily by the billing flows.
func HandleCreateCustomer(c *fiber.Ctx) error {
	var req CreateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Malformed JSON body"})
	}

	customer := &models.Customer{
		UUID:          uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:         strings.TrimSpace(req.Phone),
		MandateStatus: models.MandateStatusNone,
	}
	if err := customer.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetCustomerRepository()
	if existing, err := repo.GetByEmail(customer.Email); err == nil && existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "A customer with this email already exists"})
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check email"})
	}

	if err := repo.Create(customer); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create customer"})
	}

	return c.Status(fiber.StatusCreated).JSON(customerResponse(customer))
}

// HandleGetCustomer returns one customer by id.
func HandleGetCustomer(c *fiber.Ctx) error {
	customerID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetCustomerRepository()
	customer, err := repo.GetByID(customerID)
	if err != nil {
		return respondRepositoryError(c, err, "customer")
	}
	return c.JSON(customerResponse(customer))
}

// HandleListCustomers returns a paginated customer list.
func HandleListCustomers(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetCustomerRepository()

	customers, err := repo.List(offset, limit)
	if err != nil {
		return respondRepositoryError(c, err, "customers")
	}

	items := make([]fiber.Map, 0, len(customers))
	for i := range customers {
		items = append(items, customerResponse(&customers[i]))
	}
	return c.JSON(fiber.Map{"customers": items, "offset": offset, "limit": limit})
}

// HandleSetupMandate starts a collection authorization for the customer
// at the payment provider and stores the mandate link locally.
func HandleSetupMandate(c *fiber.Ctx) error {
	customerID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetCustomerRepository()
	customer, err := repo.GetByID(customerID)
	if err != nil {
		return respondRepositoryError(c, err, "customer")
	}

	if customer.ExternalMandateID != nil && *customer.ExternalMandateID != "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Customer already has a mandate"})
	}

	mandate, err := services.PaymentGW.CreateMandate(c.UserContext(), payments.CreateMandateInput{
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		Reference:     customer.UUID,
	})
	if err != nil {
		log.Errorf("[Customer] mandate creation failed for customer %d: %v", customer.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "external_service_error", "message": "Mandate creation failed"})
	}

	now := time.Now()
	customer.ExternalMandateID = &mandate.ID
	customer.MandateStatus = mandateStatusOrPending(mandate.Status)
	customer.MandateUpdatedAt = &now
	if err := repo.Update(customer); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store mandate"})
	}

	return c.Status(fiber.StatusCreated).JSON(customerResponse(customer))
}

// HandleRefreshMandate re-reads the mandate state from the provider.
// Normally webhook events keep it current; this is the manual escape
// hatch when a notification was missed.
func HandleRefreshMandate(c *fiber.Ctx) error {
	customerID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetCustomerRepository()
	customer, err := repo.GetByID(customerID)
	if err != nil {
		return respondRepositoryError(c, err, "customer")
	}
	if customer.ExternalMandateID == nil || *customer.ExternalMandateID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Customer has no mandate"})
	}

	mandate, err := services.PaymentGW.GetMandate(c.UserContext(), *customer.ExternalMandateID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "external_service_error", "message": "Mandate lookup failed"})
	}

	status := mandateStatusOrPending(mandate.Status)
	if status != customer.MandateStatus {
		now := time.Now()
		customer.MandateStatus = status
		customer.MandateUpdatedAt = &now
		if err := repo.Update(customer); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store mandate status"})
		}
	}

	return c.JSON(customerResponse(customer))
}

func mandateStatusOrPending(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if models.IsValidMandateStatus(status) {
		return status
	}
	return models.MandateStatusPendingSubmission
}

func customerResponse(customer *models.Customer) fiber.Map {
	return fiber.Map{
		"id":                  customer.ID,
		"uuid":                customer.UUID,
		"name":                customer.Name,
		"email":               customer.Email,
		"phone":               customer.Phone,
		"external_party_id":   customer.ExternalPartyID,
		"external_mandate_id": customer.ExternalMandateID,
		"mandate_status":      customer.MandateStatus,
		"mandate_updated_at":  formatTimePtr(customer.MandateUpdatedAt),
		"created_at":          customer.CreatedAt.UTC().Format(time.RFC3339),
	}
}
