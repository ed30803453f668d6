// Package audit guards writes on read-only tenants and keeps the
// append-only audit trail.
package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/repository"
	console "cmms/internal/utils/logger"

	"gorm.io/datatypes"
)

var log = console.New("AUDIT")

// Path prefixes that stay writable on a read-only tenant.
var exemptPrefixes = []string{
	"/api/v1/auth",
	"/api/v1/superadmin",
}

// CheckWriteAllowed rejects mutating requests against a read-only tenant.
func CheckWriteAllowed(method, path string, readOnly bool) error {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	}
	if !readOnly {
		return nil
	}
	for _, prefix := range exemptPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return nil
		}
	}
	return apperr.TenantReadOnly()
}

// Entry describes one audited action. Before and After are marshalled to
// JSON as given.
type Entry struct {
	TenantID   string
	Superadmin bool
	ActorID    string
	ActorRole  string
	Action     string
	EntityType string
	EntityID   string
	Before     any
	After      any
	IPAddress  string
	RequestID  string
}

// Store is the audit persistence surface.
type Store interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	Query(ctx context.Context, f repository.AuditFilter) ([]models.AuditLog, int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Recorder struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(store Store, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{store: store, timeout: timeout, now: time.Now}
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn("Dropping unserialisable audit payload: %v", err)
		return nil
	}
	return datatypes.JSON(raw)
}

// Record writes e. Failures are logged and never returned.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	row := &models.AuditLog{
		Superadmin: e.Superadmin,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Before:     toJSON(e.Before),
		After:      toJSON(e.After),
		IPAddress:  e.IPAddress,
		RequestID:  e.RequestID,
	}
	if e.TenantID != "" {
		tenantID := e.TenantID
		row.TenantID = &tenantID
	}

	// The write must outlive a cancelled request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.store.Insert(ctx, row); err != nil {
		log.Warn("Audit write for %s failed: %v", e.Action, err)
	}
}

func (r *Recorder) Query(ctx context.Context, f repository.AuditFilter) ([]models.AuditLog, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, total, err := r.store.Query(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return rows, total, nil
}

// Purge deletes entries older than retentionDays and returns how many
// were removed.
func (r *Recorder) Purge(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, apperr.InvalidInput("Retention must be at least one day")
	}
	cutoff := r.now().AddDate(0, 0, -retentionDays)
	n, err := r.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	log.Info("Purged %d audit entries older than %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}
