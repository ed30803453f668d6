package handlers

import (
	"context"
	"net/http"
	"time"

	"cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/sla"

	"github.com/labstack/echo/v4"
)

// SlaRuleStore is the SLA rule persistence the admin endpoints need.
type SlaRuleStore interface {
	List(ctx context.Context, tenantID string) ([]models.SlaRule, error)
	Upsert(ctx context.Context, rule *models.SlaRule) error
}

type SlaHandler struct {
	rules  SlaRuleStore
	engine *sla.Engine
}

func NewSlaHandler(rules SlaRuleStore, engine *sla.Engine) *SlaHandler {
	return &SlaHandler{rules: rules, engine: engine}
}

// SlaPreviewResponse shows the deadlines a new record would get now.
type SlaPreviewResponse struct {
	Priority          models.Priority `json:"priority"`
	WorkOrderDeadline time.Time       `json:"workOrderDeadline"`
	TicketResponse    time.Time       `json:"ticketResponseDeadline"`
	TicketResolution  time.Time       `json:"ticketResolutionDeadline"`
}

// @Summary List SLA rules
// @Tags sla
// @Produce json
// @Success 200 {array} models.SlaRule
// @Router /sla/rules [get]
func (h *SlaHandler) List(c echo.Context) error {
	rules, err := h.rules.List(c.Request().Context(), middleware.GetTenantID(c))
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, rules)
}

// Upsert creates or replaces the rule for an entity and priority.
// @Summary Upsert SLA rule
// @Tags sla
// @Accept json
// @Produce json
// @Param request body validator.SlaRuleRequest true "Rule"
// @Success 200 {object} models.SlaRule
// @Failure 400 {object} map[string]string "Validation error"
// @Router /sla/rules [put]
func (h *SlaHandler) Upsert(c echo.Context) error {
	var req validator.SlaRuleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	rule := &models.SlaRule{
		TenantID:            middleware.GetTenantID(c),
		EntityType:          req.EntityType,
		Priority:            req.Priority,
		ResponseTimeHours:   req.ResponseTimeHours,
		ResolutionTimeHours: req.ResolutionTimeHours,
		IsActive:            req.IsActive == nil || *req.IsActive,
	}
	if err := h.rules.Upsert(c.Request().Context(), rule); err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, rule)
}

// Preview computes deadlines for the given priority from the current time.
// @Summary Preview SLA deadlines
// @Tags sla
// @Produce json
// @Param priority query string false "Priority" default(media)
// @Success 200 {object} SlaPreviewResponse
// @Router /sla/preview [get]
func (h *SlaHandler) Preview(c echo.Context) error {
	priority := models.Priority(c.QueryParam("priority"))
	if priority == "" {
		priority = models.PriorityMedia
	}
	if !models.IsValidPriority(string(priority)) {
		return apperr.InvalidInput("Unknown priority " + string(priority))
	}
	ctx := c.Request().Context()
	tenantID := middleware.GetTenantID(c)
	now := time.Now().UTC()
	tickets := h.engine.TicketDeadlines(ctx, tenantID, priority, now)
	return c.JSON(http.StatusOK, SlaPreviewResponse{
		Priority:          priority,
		WorkOrderDeadline: h.engine.WorkOrderDeadline(ctx, tenantID, priority, now),
		TicketResponse:    tickets.Response,
		TicketResolution:  tickets.Resolution,
	})
}
