package api

import (
	"cmms/internal/api/middleware"
	"cmms/internal/api/registry"
	"cmms/internal/handlers"
	"cmms/internal/metrics"
	"cmms/internal/models"
	"cmms/internal/rbac"

	_ "cmms/docs/swagger"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func (s *Server) registerRoutes() {
	// Health check
	// @Summary Health check
	// @Description Check if the server and database are reachable
	// @Produce json
	// @Success 200 {object} map[string]string "OK"
	// @Failure 503 {object} map[string]string "Database unreachable"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	authHandler := handlers.NewAuthHandler(s.users, s.tokens, s.recorder)
	authMiddleware := middleware.NewAuthMiddleware(s.tokens, s.users).Middleware()

	// Public auth routes
	auth := s.echo.Group("/api/v1/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	s.registerSuperadminRoutes(authMiddleware)

	// Tenant routes: authenticate, resolve the tenant, then refuse writes
	// on read-only tenants before any permission check.
	api := s.echo.Group("/api/v1",
		authMiddleware,
		middleware.Tenant(s.resolver, s.config.Tenant.BaseDomain),
		middleware.ReadOnly(),
	)
	api.GET("/me", authHandler.GetMe)

	s.registerWorkRoutes(api)
	s.registerAdminRoutes(api, authHandler)
}

func (s *Server) tenantPerm(permission string) echo.MiddlewareFunc {
	return middleware.RequirePermission(s.guard, permission, rbac.ScopeTenant)
}

func (s *Server) plantPerm(permission string) echo.MiddlewareFunc {
	return middleware.RequirePermission(s.guard, permission, rbac.ScopePlant)
}

// registerWorkRoutes wires work orders and tickets. Their services write
// their own audit entries with before and after state.
func (s *Server) registerWorkRoutes(api *echo.Group) {
	woHandler := handlers.NewWorkOrderHandler(s.orders)
	uploadHandler := handlers.NewUploadHandler(s.orders, 0)
	ticketHandler := handlers.NewTicketHandler(s.orders)
	workflowHandler := handlers.NewWorkflowHandler(s.flows, s.rbacRepo)

	wo := api.Group("/plants/:plantId/work-orders")
	wo.POST("", woHandler.Create, s.plantPerm(models.PermWorkOrdersCreate))
	wo.GET("/:id", woHandler.Get, s.plantPerm(models.PermWorkOrdersRead))
	wo.POST("/:id/transition", woHandler.Transition, s.plantPerm(models.PermWorkOrdersUpdate))
	wo.POST("/:id/attachments", uploadHandler.UploadAttachment, s.plantPerm(models.PermWorkOrdersUpdate))

	api.GET("/plants/:plantId/workflow", workflowHandler.Active, s.plantPerm(models.PermWorkflowsRead))

	tickets := api.Group("/tickets")
	tickets.POST("", ticketHandler.Create, s.tenantPerm(models.PermTicketsCreate))
	tickets.GET("/:id", ticketHandler.Get, s.tenantPerm(models.PermTicketsRead))
	tickets.POST("/:id/status", ticketHandler.UpdateStatus, s.tenantPerm(models.PermTicketsUpdate))
}

// registerAdminRoutes wires tenant administration. Successful mutations
// are recorded by the audit trail middleware.
func (s *Server) registerAdminRoutes(api *echo.Group, authHandler *handlers.AuthHandler) {
	rbacHandler := handlers.NewRBACHandler(s.rbacRepo, s.users)
	workflowHandler := handlers.NewWorkflowHandler(s.flows, s.rbacRepo)
	slaHandler := handlers.NewSlaHandler(s.slaRules, s.sla)
	auditHandler := handlers.NewAuditHandler(s.recorder)

	// User creation hashes the password and audits itself.
	api.POST("/users", authHandler.CreateUser, s.tenantPerm(models.PermAdminUsers))
	api.GET("/audit", auditHandler.List, s.tenantPerm(models.PermAdminAudit))

	admin := api.Group("", middleware.AuditTrail(s.recorder, false))
	registry.RegisterCRUDRoutes(admin, s.db, s.guard)

	admin.POST("/setup/seed", rbacHandler.Seed, s.tenantPerm(models.PermSetupRun))

	admin.GET("/rbac/permissions", rbacHandler.Catalog, s.tenantPerm(models.PermAdminRBAC))
	admin.GET("/rbac/grants", rbacHandler.ListGrants, s.tenantPerm(models.PermAdminRBAC))
	admin.POST("/rbac/grants", rbacHandler.Grant, s.tenantPerm(models.PermAdminRBAC))
	admin.DELETE("/rbac/grants", rbacHandler.Revoke, s.tenantPerm(models.PermAdminRBAC))
	admin.PUT("/plants/:plantId/roles", rbacHandler.SetPlantRole, s.plantPerm(models.PermAdminRBAC))

	admin.GET("/workflows", workflowHandler.List, s.tenantPerm(models.PermWorkflowsRead))
	admin.GET("/workflows/:id", workflowHandler.Get, s.tenantPerm(models.PermWorkflowsRead))
	admin.POST("/workflows", workflowHandler.Create, s.tenantPerm(models.PermAdminWorkflows))
	admin.PUT("/workflows/:id", workflowHandler.Update, s.tenantPerm(models.PermAdminWorkflows))

	admin.GET("/sla/rules", slaHandler.List, s.tenantPerm(models.PermAdminSLA))
	admin.PUT("/sla/rules", slaHandler.Upsert, s.tenantPerm(models.PermAdminSLA))
	admin.GET("/sla/preview", slaHandler.Preview, s.tenantPerm(models.PermAdminSLA))
}

// registerSuperadminRoutes wires platform operations. They act across
// tenants, so no tenant is resolved and the read-only lock does not apply.
func (s *Server) registerSuperadminRoutes(authMiddleware echo.MiddlewareFunc) {
	superadminHandler := handlers.NewSuperadminHandler(handlers.SuperadminDeps{
		Tenants:          s.tenants,
		Grants:           s.rbacRepo,
		Cache:            s.resolver.Cache(),
		Audit:            s.recorder,
		Purger:           s.recorder,
		Queue:            s.deps.Queue,
		Events:           s.deps.Events,
		DefaultRetention: s.config.Audit.RetentionDays,
	})
	auditHandler := handlers.NewAuditHandler(s.recorder)

	sa := s.echo.Group("/api/v1/superadmin", authMiddleware, middleware.RequireSuperadmin())
	sa.GET("/tenants", superadminHandler.ListTenants)
	sa.POST("/tenants", superadminHandler.CreateTenant)
	sa.PUT("/tenants/:id/read-only", superadminHandler.SetReadOnly)
	sa.GET("/audit", auditHandler.ListSuperadmin)
	sa.POST("/audit/purge", superadminHandler.PurgeAudit)
}
