package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/billing"
	"github.com/ledgerlink/ledgerlink/internal/pkg/gateway/invoicing"
)

// CreateBillingCycleRequest is the POST body for cycle creation.
type CreateBillingCycleRequest struct {
	CustomerID  uint       `json:"customer_id"`
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	LineItems   []struct {
		Name            string `json:"name"`
		Quantity        int    `json:"quantity"`
		UnitAmountMinor int64  `json:"unit_amount_minor"`
	} `json:"line_items,omitempty"`
}

// HandleCreateBillingCycle creates one billing cycle: invoice at the
// invoicing service, payment at the provider when a mandate is active,
// and the local record + receipt.
func HandleCreateBillingCycle(c *fiber.Ctx) error {
	var req CreateBillingCycleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Malformed JSON body"})
	}

	input := billing.CreateCycleInput{
		CustomerID:  req.CustomerID,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	for _, li := range req.LineItems {
		input.LineItems = append(input.LineItems, invoicing.LineItem{
			Name:            li.Name,
			Quantity:        li.Quantity,
			UnitAmountMinor: li.UnitAmountMinor,
		})
	}

	result, err := services.Orchestrator.CreateBillingCycle(c.UserContext(), input)
	if err != nil {
		return respondBillingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"record":  billingRecordResponse(result.Record),
		"receipt": receiptResponse(result.Receipt),
		"external": fiber.Map{
			"invoice_id": result.Invoice.ID,
			"payment_id": externalPaymentID(result),
		},
	})
}

// SyncBillingRequest is the POST body for a reconciliation run.
type SyncBillingRequest struct {
	CustomerID uint `json:"customer_id"`
}

// HandleSyncBilling triggers reconciliation for one customer. A fresh
// cached result is returned without touching the external services.
func HandleSyncBilling(c *fiber.Ctx) error {
	var req SyncBillingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Malformed JSON body"})
	}
	if req.CustomerID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "customer_id is required"})
	}

	result, err := services.Sync.SyncCustomer(c.UserContext(), req.CustomerID)
	if err != nil {
		return respondBillingError(c, err)
	}

	return c.JSON(result)
}

// HandleListBillingRecords returns a paginated record list, optionally
// filtered by customer.
func HandleListBillingRecords(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetBillingRecordRepository()

	var (
		records []models.BillingRecord
		err     error
	)
	if customerID := c.QueryInt("customer_id", 0); customerID > 0 {
		records, err = repo.GetByCustomerID(uint(customerID), offset, limit)
	} else {
		records, err = repo.List(offset, limit)
	}
	if err != nil {
		return respondRepositoryError(c, err, "billing records")
	}

	items := make([]fiber.Map, 0, len(records))
	for i := range records {
		items = append(items, billingRecordResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"records": items, "offset": offset, "limit": limit})
}

// HandleGetBillingRecord returns one billing record by UUID.
func HandleGetBillingRecord(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetBillingRecordRepository()
	record, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return respondRepositoryError(c, err, "billing record")
	}
	return c.JSON(billingRecordResponse(record))
}

func billingRecordResponse(record *models.BillingRecord) fiber.Map {
	return fiber.Map{
		"id":                  record.ID,
		"uuid":                record.UUID,
		"customer_id":         record.CustomerID,
		"external_invoice_id": record.ExternalInvoiceID,
		"external_payment_id": record.ExternalPaymentID,
		"amount_minor":        record.AmountMinor,
		"currency":            record.Currency,
		"status":              record.Status,
		"description":         record.Description,
		"due_date":            formatTimePtr(record.DueDate),
		"paid_at":             formatTimePtr(record.PaidAt),
		"created_at":          record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func receiptResponse(receipt *models.Receipt) fiber.Map {
	return fiber.Map{
		"id":                receipt.ID,
		"uuid":              receipt.UUID,
		"billing_record_id": receipt.BillingRecordID,
		"file_name":         receipt.FileName,
		"document_url":      receipt.DocumentURL,
		"downloaded":        receipt.Downloaded,
		"download_count":    receipt.DownloadCount,
	}
}

func externalPaymentID(result *billing.CycleResult) interface{} {
	if result.Payment == nil {
		return nil
	}
	return result.Payment.ID
}
