package models

import (
	"context"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

// AttachmentSigner presigns download URLs for stored attachments.
type AttachmentSigner interface {
	GetSignedURL(ctx context.Context, path string, duration time.Duration) (string, error)
}

type signerSlot struct {
	signer AttachmentSigner
	ttl    time.Duration
}

var attachmentSigner atomic.Pointer[signerSlot]

// RegisterAttachmentSigner makes loaded files carry a presigned URL valid
// for ttl. A nil signer turns signing off.
func RegisterAttachmentSigner(signer AttachmentSigner, ttl time.Duration) {
	if signer == nil {
		attachmentSigner.Store(nil)
		return
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	attachmentSigner.Store(&signerSlot{signer: signer, ttl: ttl})
}

// File is a work order attachment kept in object storage.
type File struct {
	Base
	TenantID    string `gorm:"type:uuid;not null;index" json:"tenantId"`
	WorkOrderID string `gorm:"type:uuid;not null;index" json:"workOrderId"`
	UploadedBy  string `gorm:"type:uuid" json:"uploadedBy"`
	Path        string `gorm:"not null" json:"path"`
	Name        string `gorm:"not null" json:"name"`
	Size        int64  `gorm:"not null" json:"size"`
	Type        string `gorm:"not null" json:"type"`
	SignedURL   string `gorm:"-" json:"signedUrl,omitempty"`
}

// AfterFind presigns the download URL. A signing failure leaves the URL
// empty rather than failing the read of the work order.
func (f *File) AfterFind(tx *gorm.DB) error {
	slot := attachmentSigner.Load()
	if slot == nil {
		return nil
	}
	url, err := slot.signer.GetSignedURL(tx.Statement.Context, f.Path, slot.ttl)
	if err != nil {
		log.Warn("Could not sign attachment %s: %v", f.ID, err)
		return nil
	}
	f.SignedURL = url
	return nil
}
