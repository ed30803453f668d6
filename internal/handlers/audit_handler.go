package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cmms/internal/api/middleware"
	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/labstack/echo/v4"
)

// AuditReader queries the audit trail.
type AuditReader interface {
	Query(ctx context.Context, f repository.AuditFilter) ([]models.AuditLog, int64, error)
}

type AuditHandler struct {
	audit AuditReader
}

func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// auditFilter reads action, actorId, from, to, page and limit.
func auditFilter(c echo.Context) (repository.AuditFilter, error) {
	f := repository.AuditFilter{
		Action:  c.QueryParam("action"),
		ActorID: c.QueryParam("actorId"),
	}
	f.Page, _ = strconv.Atoi(c.QueryParam("page"))
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperr.InvalidInput("Invalid " + name + " timestamp")
		}
		*dst = t
	}
	return f, nil
}

func (h *AuditHandler) respond(c echo.Context, f repository.AuditFilter) error {
	rows, total, err := h.audit.Query(c.Request().Context(), f)
	if err != nil {
		return err
	}
	_, limit := repository.Page(f.Page, f.Limit)
	page := f.Page
	if page < 1 {
		page = 1
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  rows,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// List returns the tenant's audit trail, newest first.
// @Summary Tenant audit log
// @Tags audit
// @Produce json
// @Param action query string false "Action"
// @Param actorId query string false "Actor ID"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} map[string]interface{}
// @Router /audit [get]
func (h *AuditHandler) List(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	f.TenantID = middleware.GetTenantID(c)
	return h.respond(c, f)
}

// ListSuperadmin returns the superadmin stream, optionally for one tenant.
// @Summary Superadmin audit log
// @Tags superadmin
// @Produce json
// @Param tenantId query string false "Tenant ID"
// @Success 200 {object} map[string]interface{}
// @Router /superadmin/audit [get]
func (h *AuditHandler) ListSuperadmin(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	superadmin := true
	f.Superadmin = &superadmin
	f.TenantID = c.QueryParam("tenantId")
	return h.respond(c, f)
}
