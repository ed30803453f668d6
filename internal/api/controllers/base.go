package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"cmms/internal/api/middleware"
	"cmms/internal/apperr"
	"cmms/internal/repository"
	"cmms/internal/services"

	"github.com/labstack/echo/v4"
)

// BaseController provides tenant-scoped CRUD endpoints for any model
type BaseController[T any] struct {
	service services.BaseService[T]
	name    string
}

// NewBaseController creates a new base controller. name is used in not
// found messages, e.g. "Plant".
func NewBaseController[T any](service services.BaseService[T], name string) *BaseController[T] {
	return &BaseController[T]{service: service, name: name}
}

func (c *BaseController[T]) storeErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(c.name + " not found")
	}
	return apperr.Internal(err)
}

// Create handles creation of new entities
func (c *BaseController[T]) Create(ctx echo.Context) error {
	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := ctx.Validate(&entity); err != nil {
		return err
	}
	if err := c.service.Create(ctx.Request().Context(), middleware.GetTenantID(ctx), &entity); err != nil {
		return apperr.Internal(err)
	}
	return ctx.JSON(http.StatusCreated, entity)
}

// Get handles retrieval of a single entity
func (c *BaseController[T]) Get(ctx echo.Context) error {
	entity, err := c.service.Get(ctx.Request().Context(), middleware.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		return c.storeErr(err)
	}
	return ctx.JSON(http.StatusOK, entity)
}

// List handles retrieval of multiple entities with pagination and filtering
func (c *BaseController[T]) List(ctx echo.Context) error {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	q := services.ListQuery{
		Page:    page,
		Limit:   limit,
		Filters: make(map[string]string),
		Sort:    ctx.QueryParam("sort"),
		Desc:    ctx.QueryParam("order") == "desc",
	}
	for key, values := range ctx.QueryParams() {
		switch key {
		case "page", "limit", "sort", "order":
			continue
		}
		if len(values) > 0 {
			q.Filters[key] = values[0]
		}
	}

	entities, total, err := c.service.List(ctx.Request().Context(), middleware.GetTenantID(ctx), q)
	if err != nil {
		return apperr.Internal(err)
	}
	_, size := repository.Page(page, limit)
	if page < 1 {
		page = 1
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"data":  entities,
		"total": total,
		"page":  page,
		"limit": size,
	})
}

// Update handles updating an existing entity
func (c *BaseController[T]) Update(ctx echo.Context) error {
	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := ctx.Validate(&entity); err != nil {
		return err
	}
	if err := c.service.Update(ctx.Request().Context(), middleware.GetTenantID(ctx), ctx.Param("id"), &entity); err != nil {
		return c.storeErr(err)
	}
	return ctx.JSON(http.StatusOK, entity)
}

// Delete handles deletion of an entity
func (c *BaseController[T]) Delete(ctx echo.Context) error {
	if err := c.service.Delete(ctx.Request().Context(), middleware.GetTenantID(ctx), ctx.Param("id")); err != nil {
		return c.storeErr(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RegisterRoutes registers CRUD routes for the controller
func (c *BaseController[T]) RegisterRoutes(g *echo.Group, path string, methods ...string) {
	if len(methods) == 0 {
		methods = []string{http.MethodPost, http.MethodGet, http.MethodPut, http.MethodDelete}
	}
	for _, method := range methods {
		switch method {
		case http.MethodPost:
			g.POST(path, c.Create)
		case http.MethodGet:
			g.GET(path+"/:id", c.Get)
			g.GET(path, c.List)
		case http.MethodPut:
			g.PUT(path+"/:id", c.Update)
		case http.MethodDelete:
			g.DELETE(path+"/:id", c.Delete)
		}
	}
}
