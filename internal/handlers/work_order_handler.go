package handlers

import (
	"net/http"

	"cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/workorders"

	"github.com/labstack/echo/v4"
)

type WorkOrderHandler struct {
	svc *workorders.Service
}

func NewWorkOrderHandler(svc *workorders.Service) *WorkOrderHandler {
	return &WorkOrderHandler{svc: svc}
}

// actor builds the acting principal from the request context.
func actor(c echo.Context) workorders.Actor {
	return workorders.Actor{
		UserID:    middleware.GetUserID(c),
		Role:      middleware.GetEffectiveRole(c),
		IPAddress: middleware.ActorIP(c),
		RequestID: middleware.GetRequestID(c),
	}
}

// Create opens a work order on a plant.
// @Summary Create work order
// @Tags work-orders
// @Accept json
// @Produce json
// @Param plantId path string true "Plant ID"
// @Param request body workorders.CreateWorkOrderInput true "Work order"
// @Success 201 {object} models.WorkOrder
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Plant not found"
// @Router /plants/{plantId}/work-orders [post]
func (h *WorkOrderHandler) Create(c echo.Context) error {
	var req workorders.CreateWorkOrderInput
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	wo, err := h.svc.CreateWorkOrder(c.Request().Context(), actor(c), middleware.GetTenantID(c), middleware.GetPlantID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wo)
}

// Get returns a work order with its live SLA figures.
// @Summary Get work order
// @Tags work-orders
// @Produce json
// @Param plantId path string true "Plant ID"
// @Param id path string true "Work order ID"
// @Success 200 {object} workorders.View
// @Failure 404 {object} map[string]string "Not found"
// @Router /plants/{plantId}/work-orders/{id} [get]
func (h *WorkOrderHandler) Get(c echo.Context) error {
	view, err := h.svc.GetWorkOrder(c.Request().Context(), middleware.GetTenantID(c), middleware.GetPlantID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Transition moves a work order to a new status.
// @Summary Transition work order
// @Tags work-orders
// @Accept json
// @Produce json
// @Param plantId path string true "Plant ID"
// @Param id path string true "Work order ID"
// @Param request body validator.TransitionRequest true "Target status"
// @Success 200 {object} workorders.View
// @Failure 403 {object} map[string]string "Role not permitted"
// @Failure 409 {object} map[string]string "Invalid transition"
// @Router /plants/{plantId}/work-orders/{id}/transition [post]
func (h *WorkOrderHandler) Transition(c echo.Context) error {
	var req validator.TransitionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	view, err := h.svc.Transition(c.Request().Context(), actor(c), middleware.GetTenantID(c), middleware.GetPlantID(c), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
