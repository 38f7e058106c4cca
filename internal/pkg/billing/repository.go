package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the ledger-store operations used by the billing
// core. All implementations must treat duplicate-insert attempts on the
// external-id unique indexes as success-no-op.
type Repository interface {
	GetCustomerByID(ctx context.Context, id uint) (*models.Customer, error)
	GetCustomerByMandateID(ctx context.Context, mandateID string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error

	GetBillingRecordByID(ctx context.Context, id uint) (*models.BillingRecord, error)
	GetBillingRecordByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.BillingRecord, error)
	GetBillingRecordByExternalInvoiceID(ctx context.Context, externalInvoiceID string) (*models.BillingRecord, error)
	// CreateBillingCycle persists record and receipt in one transaction.
	// A uniqueness collision on the record's external ids leaves the
	// store untouched and reports created=false.
	CreateBillingCycle(ctx context.Context, record *models.BillingRecord, receipt *models.Receipt) (created bool, err error)
	UpdateBillingRecordStatus(ctx context.Context, recordID uint, status string, paidAt *time.Time) error
	SetBillingRecordExternalPaymentID(ctx context.Context, recordID uint, externalPaymentID string) error

	GetReceiptByBillingRecordID(ctx context.Context, recordID uint) (*models.Receipt, error)
	SaveReceipt(ctx context.Context, receipt *models.Receipt) error
	ListReceiptsMissingDocumentURL(ctx context.Context, limit int) ([]models.Receipt, error)

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, eventID uint, processingError string) error

	ListCustomerIDs(ctx context.Context) ([]uint, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM. Store calls
// classified as transient connection errors are retried per the retry
// package's policy.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCustomerByID(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	err := retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).First(&customer, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (r *gormRepository) GetCustomerByMandateID(ctx context.Context, mandateID string) (*models.Customer, error) {
	var customer models.Customer
	err := retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Where("external_mandate_id = ?", mandateID).First(&customer).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (r *gormRepository) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	return retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Save(customer).Error
	})
}

func (r *gormRepository) GetBillingRecordByID(ctx context.Context, id uint) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).First(&record, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormRepository) GetBillingRecordByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.BillingRecord, error) {
	return r.getBillingRecordBy(ctx, "external_payment_id = ?", externalPaymentID)
}

func (r *gormRepository) GetBillingRecordByExternalInvoiceID(ctx context.Context, externalInvoiceID string) (*models.BillingRecord, error) {
	return r.getBillingRecordBy(ctx, "external_invoice_id = ?", externalInvoiceID)
}

func (r *gormRepository) getBillingRecordBy(ctx context.Context, query string, arg string) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Where(query, arg).First(&record).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormRepository) CreateBillingCycle(ctx context.Context, record *models.BillingRecord, receipt *models.Receipt) (bool, error) {
	created := false
	err := retry.Do(ctx, func() error {
		created = false
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// The unique indexes on external_payment_id/external_invoice_id
			// are the duplicate guard: the loser of a concurrent create
			// race turns into a no-op here.
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			created = true

			receipt.BillingRecordID = record.ID
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(receipt).Error
		})
	})
	return created, err
}

func (r *gormRepository) UpdateBillingRecordStatus(ctx context.Context, recordID uint, status string, paidAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if paidAt != nil {
		updates["paid_at"] = paidAt
	}
	return retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Model(&models.BillingRecord{}).Where("id = ?", recordID).Updates(updates).Error
	})
}

func (r *gormRepository) SetBillingRecordExternalPaymentID(ctx context.Context, recordID uint, externalPaymentID string) error {
	return retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Model(&models.BillingRecord{}).
			Where("id = ? AND external_payment_id IS NULL", recordID).
			Update("external_payment_id", externalPaymentID).Error
	})
}

func (r *gormRepository) GetReceiptByBillingRecordID(ctx context.Context, recordID uint) (*models.Receipt, error) {
	var receipt models.Receipt
	err := retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Where("billing_record_id = ?", recordID).First(&receipt).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *gormRepository) SaveReceipt(ctx context.Context, receipt *models.Receipt) error {
	return retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Save(receipt).Error
	})
}

func (r *gormRepository) ListReceiptsMissingDocumentURL(ctx context.Context, limit int) ([]models.Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	var receipts []models.Receipt
	err := retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).
			Where("document_url IS NULL").
			Order("id ASC").
			Limit(limit).
			Find(&receipts).Error
	})
	return receipts, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	var created bool
	var stored models.PaymentWebhookEvent
	err := retry.Do(ctx, func() error {
		tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
		if tx.Error != nil {
			return tx.Error
		}
		created = tx.RowsAffected > 0
		return r.db.WithContext(ctx).
			Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
			First(&stored).Error
	})
	if err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, eventID uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Model(&models.PaymentWebhookEvent{}).Where("id = ?", eventID).Updates(updates).Error
	})
}

func (r *gormRepository) ListCustomerIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := retry.Do(ctx, func() error {
		return r.db.WithContext(ctx).Model(&models.Customer{}).Order("id ASC").Pluck("id", &ids).Error
	})
	return ids, err
}
