package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// AttachmentStore puts work order attachments into object storage.
type AttachmentStore interface {
	UploadFile(ctx context.Context, content []byte, key, contentType string) error
}

var (
	attachmentStore AttachmentStore
	storeMu         sync.RWMutex
)

// RegisterAttachmentStore enables uploads. Passing nil disables them again.
func RegisterAttachmentStore(s AttachmentStore) {
	storeMu.Lock()
	defer storeMu.Unlock()
	attachmentStore = s
}

func getAttachmentStore() AttachmentStore {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return attachmentStore
}

// attachmentKey namespaces objects by tenant and work order so a bucket
// listing never mixes tenants. The original name only contributes its
// extension.
func attachmentKey(tenantID, workOrderID, filename string) string {
	return fmt.Sprintf("tenants/%s/work-orders/%s/%s%s", tenantID, workOrderID, uuid.NewString(), filepath.Ext(filename))
}
