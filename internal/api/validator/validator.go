package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"cmms/internal/models"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	for tag, fn := range map[string]playgroundvalidator.Func{
		"priority":   validatePriority,
		"wo_status":  validateWorkOrderStatus,
		"sla_entity": validateSlaEntity,
		"permission": validatePermission,
		"role_key":   validateRoleKey,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %s: %v", tag, err))
		}
	}

	return &CustomValidator{validator: v}
}

// Custom validation functions
func validatePriority(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidPriority(fl.Field().String())
}

func validateWorkOrderStatus(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidWorkOrderStatus(fl.Field().String())
}

func validateSlaEntity(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidSlaEntity(fl.Field().String())
}

func validatePermission(fl playgroundvalidator.FieldLevel) bool {
	return models.IsKnownPermission(fl.Field().String())
}

// validateRoleKey accepts any role that normalises to a non-empty,
// space-free key.
func validateRoleKey(fl playgroundvalidator.FieldLevel) bool {
	role := models.NormalizeRole(fl.Field().String())
	return role != "" && !strings.ContainsAny(role, " \t")
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// LoginRequest Request validation structs
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type TransitionRequest struct {
	Status models.WorkOrderStatus `json:"status" validate:"required,wo_status"`
}

type TicketStatusRequest struct {
	Status models.TicketStatus `json:"status" validate:"required,oneof=aberto em_atendimento resolvido fechado"`
}

type WorkflowRequest struct {
	PlantID   *string               `json:"plantId" validate:"omitempty,uuid"`
	Name      string                `json:"name" validate:"required,max=120"`
	IsDefault bool                  `json:"isDefault"`
	Config    models.WorkflowConfig `json:"config"`
}

type SlaRuleRequest struct {
	EntityType          models.SlaEntity `json:"entityType" validate:"required,sla_entity"`
	Priority            models.Priority  `json:"priority" validate:"required,priority"`
	ResponseTimeHours   *float64         `json:"responseTimeHours" validate:"omitempty,gt=0"`
	ResolutionTimeHours *float64         `json:"resolutionTimeHours" validate:"omitempty,gt=0"`
	IsActive            *bool            `json:"isActive"`
}

type GrantRequest struct {
	RoleKey       string `json:"roleKey" validate:"required,role_key"`
	PermissionKey string `json:"permissionKey" validate:"required,permission"`
}

type PlantRoleRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,role_key"`
}

type TenantRequest struct {
	Slug            string `json:"slug" validate:"required,min=2,max=63,lowercase"`
	Name            string `json:"name" validate:"required,min=2"`
	SlaExcludePause *bool  `json:"slaExcludePause"`
}

type ReadOnlyRequest struct {
	ReadOnly *bool `json:"readOnly" validate:"required"`
}

type PurgeRequest struct {
	RetentionDays int `json:"retentionDays" validate:"omitempty,min=1,max=3650"`
}
