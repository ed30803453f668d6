package registry

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cmms/internal/api/controllers"
	"cmms/internal/api/middleware"
	"cmms/internal/models"
	"cmms/internal/rbac"
	"cmms/internal/services"

	"gorm.io/gorm"
)

// RegisterCRUDRoutes registers the tenant-scoped CRUD routes backed by
// the generic controllers. g must already run auth, tenant and read-only
// middleware.
func RegisterCRUDRoutes(g *echo.Group, db *gorm.DB, guard *rbac.Guard) {
	// Plants
	plantService := services.NewBaseService(db, models.Plant{})
	plantController := controllers.NewBaseController(plantService, "Plant")
	plantGroup := g.Group("/plants")
	plantGroup.Use(middleware.RequirePermission(guard, models.PermAdminPlants, rbac.ScopeTenant))

	// @Summary List plants
	// @Description Get a page of the tenant's plants
	// @Tags plants
	// @Produce json
	// @Success 200 {array} models.Plant
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Router /plants [get]
	plantGroup.GET("", plantController.List)
	// @Summary Get plant
	// @Tags plants
	// @Produce json
	// @Param id path string true "Plant ID"
	// @Success 200 {object} models.Plant
	// @Failure 404 {object} map[string]string "Not found"
	// @Router /plants/{id} [get]
	plantGroup.GET("/:id", plantController.Get)
	// @Summary Create plant
	// @Tags plants
	// @Accept json
	// @Produce json
	// @Param plant body models.Plant true "Plant object"
	// @Success 201 {object} models.Plant
	// @Failure 400 {object} map[string]string "Bad request"
	// @Router /plants [post]
	plantGroup.POST("", plantController.Create)
	// @Summary Update plant
	// @Tags plants
	// @Accept json
	// @Produce json
	// @Param id path string true "Plant ID"
	// @Param plant body models.Plant true "Plant object"
	// @Success 200 {object} models.Plant
	// @Failure 404 {object} map[string]string "Not found"
	// @Router /plants/{id} [put]
	plantGroup.PUT("/:id", plantController.Update)
	// @Summary Delete plant
	// @Tags plants
	// @Param id path string true "Plant ID"
	// @Success 204 "No content"
	// @Failure 404 {object} map[string]string "Not found"
	// @Router /plants/{id} [delete]
	plantGroup.DELETE("/:id", plantController.Delete)

	// Users are read through the generic controller; creation hashes
	// passwords and lives on the auth handler.
	userService := services.NewBaseService(db, models.User{})
	userController := controllers.NewBaseController(userService, "User")
	userGroup := g.Group("/users")
	userGroup.Use(middleware.RequirePermission(guard, models.PermAdminUsers, rbac.ScopeTenant))
	// @Summary List users
	// @Tags users
	// @Produce json
	// @Success 200 {array} models.User
	// @Router /users [get]
	// @Summary Get user
	// @Tags users
	// @Produce json
	// @Param id path string true "User ID"
	// @Success 200 {object} models.User
	// @Router /users/{id} [get]
	userController.RegisterRoutes(userGroup, "", http.MethodGet)
}
