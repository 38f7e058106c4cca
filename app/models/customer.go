package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Mandate lifecycle states as reported by the payment provider.
const (
	MandateStatusNone              = "none"
	MandateStatusPendingSubmission = "pending_submission"
	MandateStatusSubmitted         = "submitted"
	MandateStatusActive            = "active"
	MandateStatusFailed            = "failed"
	MandateStatusCancelled         = "cancelled"
	MandateStatusExpired           = "expired"
)

// Customer is the local identity a billing cycle is charged against.
// ExternalPartyID links it to the invoicing service, ExternalMandateID to
// the payment provider's standing collection authorization.
type Customer struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UUID              string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Name              string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Email             string     `gorm:"type:varchar(200);uniqueIndex;not null" json:"email" validate:"required,email,max=200"`
	Phone             string     `gorm:"type:varchar(32);default:''" json:"phone,omitempty" validate:"max=32"`
	ExternalPartyID   *string    `gorm:"type:varchar(191);default:null;index" json:"external_party_id,omitempty"`
	ExternalMandateID *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"external_mandate_id,omitempty"`
	MandateStatus     string     `gorm:"type:varchar(32);not null;default:'none';index" json:"mandate_status" validate:"oneof=none pending_submission submitted active failed cancelled expired"`
	MandateUpdatedAt  *time.Time `gorm:"type:timestamp;default:null" json:"mandate_updated_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Customer) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// HasActiveMandate reports whether payment collection may be requested.
func (c *Customer) HasActiveMandate() bool {
	return c.ExternalMandateID != nil && *c.ExternalMandateID != "" && c.MandateStatus == MandateStatusActive
}

// IsValidMandateStatus guards writes coming from provider events.
func IsValidMandateStatus(status string) bool {
	switch status {
	case MandateStatusNone, MandateStatusPendingSubmission, MandateStatusSubmitted,
		MandateStatusActive, MandateStatusFailed, MandateStatusCancelled, MandateStatusExpired:
		return true
	default:
		return false
	}
}
