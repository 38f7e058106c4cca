package models

import "time"

// Receipt is the generated document reference tied 1:1 to a BillingRecord.
// DocumentURL stays null until the invoicing service has produced the
// document; the backfill job fills it in later.
type Receipt struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	BillingRecordID uint       `gorm:"not null;uniqueIndex" json:"billing_record_id"`
	FileName        *string    `gorm:"type:varchar(255);default:null" json:"file_name,omitempty"`
	DocumentURL     *string    `gorm:"type:varchar(512);default:null" json:"document_url,omitempty"`
	FileSize        *int64     `gorm:"default:null" json:"file_size,omitempty"`
	MimeType        *string    `gorm:"type:varchar(100);default:null" json:"mime_type,omitempty"`
	Downloaded      bool       `gorm:"default:false" json:"downloaded"`
	DownloadedAt    *time.Time `gorm:"type:timestamp;default:null" json:"downloaded_at,omitempty"`
	DownloadCount   int64      `gorm:"default:0" json:"download_count"`
	ArchivedAt      *time.Time `gorm:"type:timestamp;default:null" json:"archived_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	BillingRecord *BillingRecord `gorm:"foreignKey:BillingRecordID" json:"-"`
}

// MarkDownloaded sets the downloaded flag the first time a client fetches
// the document.
func (r *Receipt) MarkDownloaded() {
	if !r.Downloaded {
		r.Downloaded = true
		now := time.Now()
		r.DownloadedAt = &now
	}
}
