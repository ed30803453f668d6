package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/audit"
	"cmms/internal/events"
	"cmms/internal/models"
	"cmms/internal/repository"
	"cmms/internal/tasks"
	"cmms/internal/tenant"
	"cmms/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
)

// TenantAdmin is the tenant persistence used by platform operators.
type TenantAdmin interface {
	List(ctx context.Context, page, limit int) ([]models.Tenant, int64, error)
	Create(ctx context.Context, t *models.Tenant) error
	SetReadOnly(ctx context.Context, id string, readOnly bool) (before, after *models.Tenant, err error)
}

// AuditPurger runs a retention purge inline.
type AuditPurger interface {
	Purge(ctx context.Context, retentionDays int) (int64, error)
}

// PurgeQueue hands purges to the background worker.
type PurgeQueue interface {
	EnqueueAuditPurge(ctx context.Context, p tasks.AuditPurgePayload) (*asynq.TaskInfo, error)
}

// SuperadminDeps groups the collaborators of SuperadminHandler. Queue is
// optional; without it purges run in the request.
type SuperadminDeps struct {
	Tenants          TenantAdmin
	Grants           GrantStore
	Cache            tenant.Cache
	Audit            middleware.Auditor
	Purger           AuditPurger
	Queue            PurgeQueue
	Events           *events.EventBus
	DefaultRetention int
}

type SuperadminHandler struct {
	SuperadminDeps
	log *logger.Logger
}

func NewSuperadminHandler(deps SuperadminDeps) *SuperadminHandler {
	return &SuperadminHandler{SuperadminDeps: deps, log: logger.New("superadmin")}
}

// @Summary List tenants
// @Tags superadmin
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} map[string]interface{}
// @Router /superadmin/tenants [get]
func (h *SuperadminHandler) ListTenants(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	rows, total, err := h.Tenants.List(c.Request().Context(), page, limit)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": rows, "total": total})
}

// CreateTenant provisions a tenant and seeds its default grants when the
// RBAC tables exist.
// @Summary Create tenant
// @Tags superadmin
// @Accept json
// @Produce json
// @Param request body validator.TenantRequest true "Tenant"
// @Success 201 {object} models.Tenant
// @Router /superadmin/tenants [post]
func (h *SuperadminHandler) CreateTenant(c echo.Context) error {
	var req validator.TenantRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	t := &models.Tenant{
		Slug:            strings.TrimSpace(req.Slug),
		Name:            strings.TrimSpace(req.Name),
		IsActive:        true,
		SlaExcludePause: req.SlaExcludePause == nil || *req.SlaExcludePause,
	}
	ctx := c.Request().Context()
	if err := h.Tenants.Create(ctx, t); err != nil {
		return apperr.Internal(err)
	}

	seeded, err := h.Grants.SeedDefaults(ctx, t.ID)
	switch {
	case errors.Is(err, repository.ErrNotProvisioned):
		h.log.Warn("Tenant %s created without grants: RBAC schema not provisioned", t.Slug)
	case err != nil:
		h.log.Warn("Seeding grants for tenant %s failed: %v", t.Slug, err)
	default:
		h.log.Success("Tenant %s created with %d grants", t.Slug, seeded)
	}

	h.record(c, t.ID, "tenant.create", nil, t)
	return c.JSON(http.StatusCreated, t)
}

// SetReadOnly toggles the write lock of a tenant.
// @Summary Toggle tenant read-only mode
// @Tags superadmin
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param request body validator.ReadOnlyRequest true "Flag"
// @Success 200 {object} models.Tenant
// @Failure 404 {object} map[string]string "Tenant not found"
// @Router /superadmin/tenants/{id}/read-only [put]
func (h *SuperadminHandler) SetReadOnly(c echo.Context) error {
	var req validator.ReadOnlyRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	id := c.Param("id")
	if !tenant.ValidTenantID(id) {
		return apperr.InvalidInput("Invalid tenant id")
	}
	ctx := c.Request().Context()
	before, after, err := h.Tenants.SetReadOnly(ctx, id, *req.ReadOnly)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Tenant not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}

	// The implicit tenant may carry the old flag.
	if h.Cache != nil {
		h.Cache.Reset(ctx)
	}
	h.record(c, id, "tenant.read_only",
		map[string]any{"isReadOnly": before.IsReadOnly},
		map[string]any{"isReadOnly": after.IsReadOnly})
	if h.Events != nil {
		h.Events.Emit(events.TenantReadOnlyChanged, after)
	}
	return c.JSON(http.StatusOK, after)
}

// PurgeAudit removes audit entries past retention. With a worker queue
// the purge is accepted and runs in the background.
// @Summary Purge audit log
// @Tags superadmin
// @Accept json
// @Produce json
// @Param request body validator.PurgeRequest false "Retention"
// @Success 200 {object} map[string]interface{}
// @Success 202 {object} map[string]interface{}
// @Router /superadmin/audit/purge [post]
func (h *SuperadminHandler) PurgeAudit(c echo.Context) error {
	var req validator.PurgeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.RetentionDays == 0 {
		req.RetentionDays = h.DefaultRetention
	}
	ctx := c.Request().Context()
	h.record(c, "", "audit.purge", nil, map[string]any{"retentionDays": req.RetentionDays})

	if h.Queue != nil {
		payload := tasks.AuditPurgePayload{RetentionDays: req.RetentionDays, RequestedBy: middleware.GetUserID(c)}
		info, err := h.Queue.EnqueueAuditPurge(ctx, payload)
		if err != nil {
			return apperr.Internal(err)
		}
		return c.JSON(http.StatusAccepted, map[string]interface{}{"queued": true, "taskId": info.ID, "retentionDays": req.RetentionDays})
	}

	n, err := h.Purger.Purge(ctx, req.RetentionDays)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": n, "retentionDays": req.RetentionDays})
}

func (h *SuperadminHandler) record(c echo.Context, tenantID, action string, before, after any) {
	entityID := tenantID
	if entityID == "" {
		entityID = action
	}
	h.Audit.Record(c.Request().Context(), audit.Entry{
		TenantID:   tenantID,
		Superadmin: true,
		ActorID:    middleware.GetUserID(c),
		ActorRole:  models.RoleSuperadmin,
		Action:     action,
		EntityType: "tenant",
		EntityID:   entityID,
		Before:     before,
		After:      after,
		IPAddress:  middleware.ActorIP(c),
		RequestID:  middleware.GetRequestID(c),
	})
}
