package repository

import (
	"github.com/ledgerlink/ledgerlink/app/models"
	"gorm.io/gorm"
)

// billingRecordRepository implements the BillingRecordRepository interface
type billingRecordRepository struct {
	db *gorm.DB
}

// NewBillingRecordRepository creates a new billing record repository instance
func NewBillingRecordRepository(db *gorm.DB) BillingRecordRepository {
	return &billingRecordRepository{db: db}
}

// GetByID retrieves a billing record by its ID
func (r *billingRecordRepository) GetByID(id uint) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := r.db.First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByUUID retrieves a billing record by its UUID
func (r *billingRecordRepository) GetByUUID(uuid string) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := r.db.Where("uuid = ?", uuid).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByCustomerID retrieves a paginated list of a customer's billing records
func (r *billingRecordRepository) GetByCustomerID(customerID uint, offset, limit int) ([]models.BillingRecord, error) {
	var records []models.BillingRecord
	err := r.db.Where("customer_id = ?", customerID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, err
}

// List retrieves a paginated list of billing records
func (r *billingRecordRepository) List(offset, limit int) ([]models.BillingRecord, error) {
	var records []models.BillingRecord
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, err
}

// Count returns the total number of billing records
func (r *billingRecordRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.BillingRecord{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of billing records in the given status
func (r *billingRecordRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.BillingRecord{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
