package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cmms/internal/audit"
	"cmms/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ entries []audit.Entry }

func (r *recorder) Record(_ context.Context, e audit.Entry) { r.entries = append(r.entries, e) }

func auditedEcho(t *testing.T, trusted []string) (*echo.Echo, *recorder) {
	t.Helper()
	e := echo.New()
	extractor, err := utils.NewIPExtractor(trusted)
	require.NoError(t, err)
	e.IPExtractor = extractor

	rec := &recorder{}
	e.POST("/things", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, AuditTrail(rec, false))
	e.POST("/broken", func(c echo.Context) error {
		return c.NoContent(http.StatusBadRequest)
	}, AuditTrail(rec, false))
	return e, rec
}

func post(e *echo.Echo, path, remote, xff string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = remote
	if xff != "" {
		req.Header.Set(echo.HeaderXForwardedFor, xff)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestAuditTrail_IgnoresForwardedForWithoutTrustedProxy(t *testing.T) {
	e, rec := auditedEcho(t, nil)

	w := post(e, "/things", "192.0.2.10:4000", "203.0.113.66")
	assert.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "192.0.2.10", rec.entries[0].IPAddress)
	assert.Equal(t, "POST /things", rec.entries[0].Action)
}

func TestAuditTrail_UsesForwardedForBehindTrustedProxy(t *testing.T) {
	e, rec := auditedEcho(t, []string{"10.0.0.0/8"})

	post(e, "/things", "10.1.2.3:4000", "203.0.113.66")
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "203.0.113.66", rec.entries[0].IPAddress)
}

func TestAuditTrail_SkipsFailedRequests(t *testing.T) {
	e, rec := auditedEcho(t, nil)

	w := post(e, "/broken", "192.0.2.10:4000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, rec.entries)
}
