package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
)

// processSyncCustomerJob reconciles one customer against the external
// services. The sync service's cache still applies, so a burst of jobs
// for the same customer collapses into one remote fetch.
func (q *Queue) processSyncCustomerJob(ctx context.Context, job *Job) error {
	payload, err := SyncCustomerJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid sync payload: %w", err)
	}
	if payload.CustomerID == 0 {
		return fmt.Errorf("sync payload missing customer_id")
	}
	if q.deps.Sync == nil {
		return fmt.Errorf("sync service not configured")
	}

	result, err := q.deps.Sync.SyncCustomer(ctx, payload.CustomerID)
	if err != nil {
		return err
	}

	log.Infof("[JobQueue] Synced customer %d: %d invoices, %d payments, %d records created (cached=%v)",
		payload.CustomerID, result.InvoicesSynced, result.PaymentsSynced, result.RecordsCreated, result.FromCache)
	return nil
}

// EnqueueSyncForAllCustomers schedules one sync job per known customer.
// Called by the periodic reconciliation ticker.
func (q *Queue) EnqueueSyncForAllCustomers(ctx context.Context) (int, error) {
	if q.deps.Repo == nil {
		return 0, fmt.Errorf("repository not configured")
	}

	ids, err := q.deps.Repo.ListCustomerIDs(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		if _, err := q.EnqueueJob(JobTypeSyncCustomer, SyncCustomerJobPayload{CustomerID: id}.ToMap()); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue sync for customer %d: %v", id, err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
