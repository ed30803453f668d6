package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cmms/internal/config"
	"cmms/internal/db"
	"cmms/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSigner struct {
	ttl time.Duration
	err error
}

func (s *stubSigner) GetSignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	s.ttl = ttl
	if s.err != nil {
		return "", s.err
	}
	return "https://files.test/" + path, nil
}

func TestFile_AfterFindSignsURL(t *testing.T) {
	conn, err := db.Connect(config.LoadTestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	t.Cleanup(func() { models.RegisterAttachmentSigner(nil, 0) })

	f := models.File{
		TenantID:    "11111111-1111-1111-1111-111111111111",
		WorkOrderID: "33333333-3333-3333-3333-333333333333",
		Path:        "tenants/a/report.pdf",
		Name:        "report.pdf",
		Type:        "application/pdf",
	}
	require.NoError(t, conn.Create(&f).Error)

	var loaded models.File
	require.NoError(t, conn.First(&loaded, "id = ?", f.ID).Error)
	assert.Empty(t, loaded.SignedURL)

	signer := &stubSigner{}
	models.RegisterAttachmentSigner(signer, 0)
	require.NoError(t, conn.First(&loaded, "id = ?", f.ID).Error)
	assert.Equal(t, "https://files.test/tenants/a/report.pdf", loaded.SignedURL)
	assert.Equal(t, time.Hour, signer.ttl)

	// A broken signer does not fail the read.
	models.RegisterAttachmentSigner(&stubSigner{err: errors.New("expired credentials")}, time.Minute)
	loaded = models.File{}
	require.NoError(t, conn.First(&loaded, "id = ?", f.ID).Error)
	assert.Empty(t, loaded.SignedURL)
}
