package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// processReceiptDocumentBackfillJob walks receipts whose document URL is
// still missing, asks the invoicing service whether the document has been
// generated in the meantime, and archives it to S3 when enabled. Remote
// documents that are still pending are left for the next run.
func (q *Queue) processReceiptDocumentBackfillJob(ctx context.Context, job *Job) error {
	payload, err := ReceiptDocumentBackfillJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid backfill payload: %w", err)
	}
	if q.deps.Repo == nil || q.deps.InvoiceGW == nil {
		return fmt.Errorf("backfill dependencies not configured")
	}

	receipts, err := q.deps.Repo.ListReceiptsMissingDocumentURL(ctx, payload.Limit)
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		return nil
	}

	filled := 0
	for i := range receipts {
		receipt := &receipts[i]

		record, err := q.deps.Repo.GetBillingRecordByID(ctx, receipt.BillingRecordID)
		if err != nil {
			log.Errorf("[JobQueue] Backfill: record %d lookup failed: %v", receipt.BillingRecordID, err)
			continue
		}
		if record.ExternalInvoiceID == nil || *record.ExternalInvoiceID == "" {
			continue
		}

		docURL, err := q.deps.InvoiceGW.GetInvoiceDocumentURL(ctx, *record.ExternalInvoiceID)
		if err != nil {
			log.Errorf("[JobQueue] Backfill: document url fetch failed for invoice %s: %v", *record.ExternalInvoiceID, err)
			continue
		}
		if docURL == nil {
			// Not generated remotely yet.
			continue
		}

		receipt.DocumentURL = docURL
		name := record.UUID + ".pdf"
		receipt.FileName = &name

		if q.deps.Archive != nil {
			objectKey := q.archiveObjectKey(receipt.UUID)
			if result, archErr := q.deps.Archive.ArchiveDocument(ctx, *docURL, objectKey); archErr != nil {
				log.Warnf("[JobQueue] Backfill: archive failed for receipt %s: %v", receipt.UUID, archErr)
			} else {
				receipt.FileSize = &result.Size
			}
		}

		if err := q.deps.Repo.SaveReceipt(ctx, receipt); err != nil {
			log.Errorf("[JobQueue] Backfill: save failed for receipt %s: %v", receipt.UUID, err)
			continue
		}
		filled++
	}

	log.Infof("[JobQueue] Backfill filled %d/%d receipt documents", filled, len(receipts))
	return nil
}

func (q *Queue) archiveObjectKey(receiptUUID string) string {
	now := time.Now()
	return fmt.Sprintf("receipts/%04d/%02d/%s.pdf", now.Year(), int(now.Month()), receiptUUID)
}
