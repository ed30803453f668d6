package audit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/config"
	"cmms/internal/db"
	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const tenantID = "11111111-1111-1111-1111-111111111111"

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Connect(config.LoadTestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func TestCheckWriteAllowed(t *testing.T) {
	cases := []struct {
		method   string
		path     string
		readOnly bool
		allowed  bool
	}{
		{http.MethodPost, "/api/v1/tickets", false, true},
		{http.MethodGet, "/api/v1/tickets", true, true},
		{"head", "/api/v1/tickets", true, true},
		{http.MethodOptions, "/api/v1/tickets", true, true},
		{http.MethodPost, "/api/v1/tickets", true, false},
		{http.MethodDelete, "/api/v1/rbac/grants", true, false},
		{http.MethodPost, "/api/v1/auth/login", true, true},
		{http.MethodPut, "/api/v1/superadmin/tenants/x/read-only", true, true},
		{http.MethodPost, "/api/v1/authors", true, false},
	}
	for _, tc := range cases {
		err := CheckWriteAllowed(tc.method, tc.path, tc.readOnly)
		if tc.allowed {
			assert.NoError(t, err, "%s %s", tc.method, tc.path)
			continue
		}
		var ae *apperr.Error
		require.True(t, errors.As(err, &ae), "%s %s", tc.method, tc.path)
		assert.Equal(t, apperr.KindTenantReadOnly, ae.Kind)
		assert.Equal(t, apperr.CodeTenantReadOnly, ae.Code)
	}
}

func TestRecordAndQuery(t *testing.T) {
	conn := setupDB(t)
	rec := NewRecorder(repository.NewAuditRepository(conn), time.Second)

	// A cancelled request still gets its entry written.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, Entry{
		TenantID:   tenantID,
		ActorID:    "22222222-2222-2222-2222-222222222222",
		ActorRole:  models.RoleGestor,
		Action:     "work_order.transition",
		EntityType: "work_order",
		EntityID:   "wo-1",
		Before:     map[string]string{"status": "aberta"},
		After:      map[string]string{"status": "em_analise"},
		RequestID:  "req-1",
	})
	rec.Record(context.Background(), Entry{Superadmin: true, Action: "tenant.create"})

	rows, total, err := rec.Query(context.Background(), repository.AuditFilter{TenantID: tenantID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "work_order.transition", rows[0].Action)
	assert.JSONEq(t, `{"status":"aberta"}`, string(rows[0].Before))
	assert.JSONEq(t, `{"status":"em_analise"}`, string(rows[0].After))
	require.NotNil(t, rows[0].TenantID)
	assert.Equal(t, tenantID, *rows[0].TenantID)

	yes := true
	rows, total, err = rec.Query(context.Background(), repository.AuditFilter{Superadmin: &yes})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Nil(t, rows[0].TenantID)
	assert.Empty(t, rows[0].Before)
}

func TestEntriesAreImmutable(t *testing.T) {
	conn := setupDB(t)
	repo := repository.NewAuditRepository(conn)

	row := &models.AuditLog{Action: "plant.create"}
	require.NoError(t, repo.Insert(context.Background(), row))

	row.Action = "plant.delete"
	err := conn.Save(row).Error
	assert.ErrorIs(t, err, models.ErrAuditImmutable)
}

func TestPurge(t *testing.T) {
	conn := setupDB(t)
	repo := repository.NewAuditRepository(conn)
	rec := NewRecorder(repo, time.Second)

	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return now }

	for _, age := range []int{1, 10, 40, 90} {
		row := &models.AuditLog{Action: "x", CreatedAt: now.AddDate(0, 0, -age)}
		require.NoError(t, repo.Insert(context.Background(), row))
	}

	n, err := rec.Purge(context.Background(), 30)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, total, err := rec.Query(context.Background(), repository.AuditFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, err = rec.Purge(context.Background(), 0)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindInvalidInput, ae.Kind)
}
