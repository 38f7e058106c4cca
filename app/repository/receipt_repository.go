package repository

import (
	"github.com/ledgerlink/ledgerlink/app/models"
	"gorm.io/gorm"
)

// receiptRepository implements the ReceiptRepository interface
type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new receipt repository instance
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

// GetByID retrieves a receipt by its ID
func (r *receiptRepository) GetByID(id uint) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.First(&receipt, id).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetByUUID retrieves a receipt by its UUID
func (r *receiptRepository) GetByUUID(uuid string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.Where("uuid = ?", uuid).First(&receipt).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetByBillingRecordID retrieves the receipt linked to a billing record
func (r *receiptRepository) GetByBillingRecordID(billingRecordID uint) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.Where("billing_record_id = ?", billingRecordID).First(&receipt).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Update updates an existing receipt in the database
func (r *receiptRepository) Update(receipt *models.Receipt) error {
	return r.db.Save(receipt).Error
}

// Count returns the total number of receipts
func (r *receiptRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Receipt{}).Count(&count).Error
	return count, err
}
