package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
	"github.com/ledgerlink/ledgerlink/internal/pkg/metrics/counter"
)

// HandleGetReceipt returns one receipt by UUID.
func HandleGetReceipt(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetReceiptRepository()
	receipt, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return respondRepositoryError(c, err, "receipt")
	}
	return c.JSON(receiptResponse(receipt))
}

// HandleDownloadReceipt hands out the document URL and tracks the
// download. The counter increment goes to Redis and is flushed to the
// database in batches.
func HandleDownloadReceipt(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetReceiptRepository()
	receipt, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return respondRepositoryError(c, err, "receipt")
	}

	if receipt.DocumentURL == nil || *receipt.DocumentURL == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Document not generated yet"})
	}

	if !receipt.Downloaded {
		receipt.MarkDownloaded()
		if err := repo.Update(receipt); err != nil {
			log.Errorf("[Receipt] failed to mark receipt %s downloaded: %v", receipt.UUID, err)
		}
	}
	if err := counter.AddReceiptDownload(receipt.ID); err != nil {
		log.Warnf("[Receipt] download counter failed for %s: %v", receipt.UUID, err)
	}

	return c.JSON(fiber.Map{
		"document_url": receipt.DocumentURL,
		"file_name":    receipt.FileName,
	})
}

// HandleTriggerDocumentBackfill enqueues a receipt document backfill job.
func HandleTriggerDocumentBackfill(c *fiber.Ctx) error {
	if services.Queue == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Job queue not running"})
	}

	limit := c.QueryInt("limit", 50)
	job, err := services.Queue.EnqueueJob(
		jobqueue.JobTypeReceiptDocumentBackfill,
		jobqueue.ReceiptDocumentBackfillJobPayload{Limit: limit}.ToMap(),
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enqueue job"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID})
}
