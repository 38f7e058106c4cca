package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeSyncCustomer            JobType = "sync_customer"
	JobTypeReceiptDocumentBackfill JobType = "receipt_document_backfill"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// SyncCustomerJobPayload contains the payload for customer reconciliation jobs
type SyncCustomerJobPayload struct {
	CustomerID uint `json:"customer_id"`
}

// ToMap converts the payload to a map for storage
func (p SyncCustomerJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"customer_id": p.CustomerID,
	}
}

// FromMap creates a payload from a map
func SyncCustomerJobPayloadFromMap(data map[string]interface{}) (*SyncCustomerJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload SyncCustomerJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ReceiptDocumentBackfillJobPayload contains the payload for receipt
// document backfill jobs. Limit bounds how many receipts one run touches.
type ReceiptDocumentBackfillJobPayload struct {
	Limit int `json:"limit"`
}

// ToMap converts the payload to a map for storage
func (p ReceiptDocumentBackfillJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"limit": p.Limit,
	}
}

// FromMap creates a payload from a map
func ReceiptDocumentBackfillJobPayloadFromMap(data map[string]interface{}) (*ReceiptDocumentBackfillJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ReceiptDocumentBackfillJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
