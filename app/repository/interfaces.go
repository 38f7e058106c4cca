package repository

import (
	"github.com/ledgerlink/ledgerlink/app/models"
	"gorm.io/gorm"
)

// CustomerRepository defines the interface for customer-related database operations
type CustomerRepository interface {
	Create(customer *models.Customer) error
	GetByID(id uint) (*models.Customer, error)
	GetByUUID(uuid string) (*models.Customer, error)
	GetByEmail(email string) (*models.Customer, error)
	Update(customer *models.Customer) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Customer, error)
	Count() (int64, error)
}

// BillingRecordRepository defines the interface for billing-record reads
// exposed over the API. Writes go through the billing core exclusively.
type BillingRecordRepository interface {
	GetByID(id uint) (*models.BillingRecord, error)
	GetByUUID(uuid string) (*models.BillingRecord, error)
	GetByCustomerID(customerID uint, offset, limit int) ([]models.BillingRecord, error)
	List(offset, limit int) ([]models.BillingRecord, error)
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
}

// ReceiptRepository defines the interface for receipt-related database operations
type ReceiptRepository interface {
	GetByID(id uint) (*models.Receipt, error)
	GetByUUID(uuid string) (*models.Receipt, error)
	GetByBillingRecordID(billingRecordID uint) (*models.Receipt, error)
	Update(receipt *models.Receipt) error
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Customer      CustomerRepository
	BillingRecord BillingRecordRepository
	Receipt       ReceiptRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Customer:      NewCustomerRepository(db),
		BillingRecord: NewBillingRecordRepository(db),
		Receipt:       NewReceiptRepository(db),
	}
}
