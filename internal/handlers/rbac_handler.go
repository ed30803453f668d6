package handlers

import (
	"context"
	"errors"
	"net/http"

	"cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/labstack/echo/v4"
)

// GrantStore manages role grants and plant role overrides.
type GrantStore interface {
	ListGrants(ctx context.Context, tenantID, roleKey string) ([]models.RolePermission, error)
	Grant(ctx context.Context, tenantID, roleKey, permissionKey string) error
	Revoke(ctx context.Context, tenantID, roleKey, permissionKey string) (bool, error)
	SetPlantRole(ctx context.Context, userID, plantID, role string) error
	SeedDefaults(ctx context.Context, tenantID string) (int, error)
}

type RBACHandler struct {
	grants GrantStore
	users  UserStore
}

func NewRBACHandler(grants GrantStore, users UserStore) *RBACHandler {
	return &RBACHandler{grants: grants, users: users}
}

func rbacErr(err error) error {
	if errors.Is(err, repository.ErrNotProvisioned) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "RBAC not yet applied")
	}
	return apperr.Internal(err)
}

// Catalog lists every grantable permission key.
// @Summary Permission catalog
// @Tags rbac
// @Produce json
// @Success 200 {array} string
// @Router /rbac/permissions [get]
func (h *RBACHandler) Catalog(c echo.Context) error {
	return c.JSON(http.StatusOK, models.PermissionCatalog)
}

// @Summary List grants
// @Tags rbac
// @Produce json
// @Param role query string false "Role key"
// @Success 200 {array} models.RolePermission
// @Router /rbac/grants [get]
func (h *RBACHandler) ListGrants(c echo.Context) error {
	grants, err := h.grants.ListGrants(c.Request().Context(), middleware.GetTenantID(c), models.NormalizeRole(c.QueryParam("role")))
	if err != nil {
		return rbacErr(err)
	}
	return c.JSON(http.StatusOK, grants)
}

func bindGrant(c echo.Context) (validator.GrantRequest, error) {
	var req validator.GrantRequest
	if err := c.Bind(&req); err != nil {
		return req, apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return req, err
	}
	req.RoleKey = models.NormalizeRole(req.RoleKey)
	if req.RoleKey == models.RoleSuperadmin {
		return req, apperr.InvalidInput("Superadmin grants are implicit")
	}
	return req, nil
}

// @Summary Grant permission
// @Tags rbac
// @Accept json
// @Produce json
// @Param request body validator.GrantRequest true "Grant"
// @Success 201 {object} validator.GrantRequest
// @Router /rbac/grants [post]
func (h *RBACHandler) Grant(c echo.Context) error {
	req, err := bindGrant(c)
	if err != nil {
		return err
	}
	if err := h.grants.Grant(c.Request().Context(), middleware.GetTenantID(c), req.RoleKey, req.PermissionKey); err != nil {
		return rbacErr(err)
	}
	return c.JSON(http.StatusCreated, req)
}

// @Summary Revoke permission
// @Tags rbac
// @Accept json
// @Param request body validator.GrantRequest true "Grant"
// @Success 204 "No content"
// @Failure 404 {object} map[string]string "Grant not found"
// @Router /rbac/grants [delete]
func (h *RBACHandler) Revoke(c echo.Context) error {
	req, err := bindGrant(c)
	if err != nil {
		return err
	}
	removed, err := h.grants.Revoke(c.Request().Context(), middleware.GetTenantID(c), req.RoleKey, req.PermissionKey)
	if err != nil {
		return rbacErr(err)
	}
	if !removed {
		return apperr.NotFound("Grant not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// SetPlantRole overrides a user's role inside one plant. An empty role
// clears the override.
// @Summary Set plant role
// @Tags rbac
// @Accept json
// @Param plantId path string true "Plant ID"
// @Param request body validator.PlantRoleRequest true "Override"
// @Success 204 "No content"
// @Router /plants/{plantId}/roles [put]
func (h *RBACHandler) SetPlantRole(c echo.Context) error {
	var req validator.PlantRoleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	user, err := h.users.FindByID(ctx, req.UserID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user.TenantID != middleware.GetTenantID(c)) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	role := models.NormalizeRole(req.Role)
	if role == models.RoleSuperadmin {
		return apperr.InvalidInput("Superadmin cannot be assigned per plant")
	}
	if err := h.grants.SetPlantRole(ctx, user.ID, middleware.GetPlantID(c), role); err != nil {
		return rbacErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Seed writes the default grant matrix for the current tenant.
// @Summary Seed default grants
// @Tags setup
// @Produce json
// @Success 200 {object} map[string]int
// @Router /setup/seed [post]
func (h *RBACHandler) Seed(c echo.Context) error {
	n, err := h.grants.SeedDefaults(c.Request().Context(), middleware.GetTenantID(c))
	if err != nil {
		return rbacErr(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"created": n})
}
