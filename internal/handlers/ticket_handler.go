package handlers

import (
	"net/http"

	"cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/workorders"

	"github.com/labstack/echo/v4"
)

type TicketHandler struct {
	svc *workorders.Service
}

func NewTicketHandler(svc *workorders.Service) *TicketHandler {
	return &TicketHandler{svc: svc}
}

// Create opens a support ticket.
// @Summary Create ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Param request body workorders.CreateTicketInput true "Ticket"
// @Success 201 {object} models.Ticket
// @Failure 400 {object} map[string]string "Validation error"
// @Router /tickets [post]
func (h *TicketHandler) Create(c echo.Context) error {
	var req workorders.CreateTicketInput
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	t, err := h.svc.CreateTicket(c.Request().Context(), actor(c), middleware.GetTenantID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

// @Summary Get ticket
// @Tags tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} workorders.TicketView
// @Failure 404 {object} map[string]string "Not found"
// @Router /tickets/{id} [get]
func (h *TicketHandler) Get(c echo.Context) error {
	view, err := h.svc.GetTicket(c.Request().Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// UpdateStatus moves a ticket along its lifecycle.
// @Summary Update ticket status
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param request body validator.TicketStatusRequest true "Target status"
// @Success 200 {object} workorders.TicketView
// @Failure 409 {object} map[string]string "Invalid transition"
// @Router /tickets/{id}/status [post]
func (h *TicketHandler) UpdateStatus(c echo.Context) error {
	var req validator.TicketStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	view, err := h.svc.UpdateTicketStatus(c.Request().Context(), actor(c), middleware.GetTenantID(c), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
