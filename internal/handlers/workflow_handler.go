package handlers

import (
	"net/http"

	"cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/rbac"
	"cmms/internal/workflow"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

type WorkflowHandler struct {
	svc    *workflow.Service
	plants rbac.Store
}

func NewWorkflowHandler(svc *workflow.Service, plants rbac.Store) *WorkflowHandler {
	return &WorkflowHandler{svc: svc, plants: plants}
}

// ActiveWorkflowResponse is the workflow governing a plant. ID is empty
// when the built-in table applies.
type ActiveWorkflowResponse struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Builtin bool            `json:"builtin"`
	Config  workflow.Config `json:"config"`
}

// @Summary List workflows
// @Tags workflows
// @Produce json
// @Success 200 {array} models.WorkOrderWorkflow
// @Router /workflows [get]
func (h *WorkflowHandler) List(c echo.Context) error {
	rows, err := h.svc.List(c.Request().Context(), middleware.GetTenantID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// @Summary Get workflow
// @Tags workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} models.WorkOrderWorkflow
// @Failure 404 {object} map[string]string "Not found"
// @Router /workflows/{id} [get]
func (h *WorkflowHandler) Get(c echo.Context) error {
	wf, err := h.svc.Get(c.Request().Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// Active resolves the workflow for a plant, falling back to the tenant
// workflow and then to the built-in table.
// @Summary Active workflow for a plant
// @Tags workflows
// @Produce json
// @Param plantId path string true "Plant ID"
// @Success 200 {object} ActiveWorkflowResponse
// @Router /plants/{plantId}/workflow [get]
func (h *WorkflowHandler) Active(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.svc.ResolveActive(ctx, middleware.GetTenantID(c), middleware.GetPlantID(c))
	if err != nil {
		return err
	}
	if wf == nil || len(wf.Config.Data().Transitions) == 0 {
		return c.JSON(http.StatusOK, ActiveWorkflowResponse{Name: "default", Builtin: true, Config: workflow.DefaultConfig()})
	}
	return c.JSON(http.StatusOK, ActiveWorkflowResponse{ID: wf.ID, Name: wf.Name, Config: wf.Config.Data()})
}

func (h *WorkflowHandler) bind(c echo.Context) (validator.WorkflowRequest, error) {
	var req validator.WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return req, apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return req, err
	}
	if len(req.Config.Transitions) == 0 {
		return req, apperr.InvalidInput("Workflow needs at least one transition")
	}
	if err := c.Validate(&req.Config); err != nil {
		return req, err
	}
	if req.PlantID != nil {
		ok, err := h.plants.PlantInTenant(c.Request().Context(), middleware.GetTenantID(c), *req.PlantID)
		if err != nil {
			return req, apperr.Internal(err)
		}
		if !ok {
			return req, apperr.NotFound("Plant not found")
		}
	}
	return req, nil
}

// Create stores a new workflow for the tenant or one plant.
// @Summary Create workflow
// @Tags workflows
// @Accept json
// @Produce json
// @Param request body validator.WorkflowRequest true "Workflow"
// @Success 201 {object} models.WorkOrderWorkflow
// @Failure 400 {object} map[string]string "Validation error"
// @Router /workflows [post]
func (h *WorkflowHandler) Create(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	wf := &models.WorkOrderWorkflow{
		TenantID:  middleware.GetTenantID(c),
		PlantID:   req.PlantID,
		Name:      req.Name,
		IsDefault: req.IsDefault,
		Config:    datatypes.NewJSONType(req.Config),
	}
	if err := h.svc.Save(c.Request().Context(), wf); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wf)
}

// Update replaces a workflow's name, scope, default flag and table.
// @Summary Update workflow
// @Tags workflows
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param request body validator.WorkflowRequest true "Workflow"
// @Success 200 {object} models.WorkOrderWorkflow
// @Failure 404 {object} map[string]string "Not found"
// @Router /workflows/{id} [put]
func (h *WorkflowHandler) Update(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	wf, err := h.svc.Get(ctx, middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		return err
	}
	wf.PlantID = req.PlantID
	wf.Name = req.Name
	wf.IsDefault = req.IsDefault
	wf.Config = datatypes.NewJSONType(req.Config)
	if err := h.svc.Save(ctx, wf); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}
