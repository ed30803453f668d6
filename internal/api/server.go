package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-advanced-admin/admin"
	admingorm "github.com/go-advanced-admin/orm-gorm"
	adminecho "github.com/go-advanced-admin/web-echo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apimw "cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/audit"
	"cmms/internal/config"
	"cmms/internal/events"
	"cmms/internal/handlers"
	"cmms/internal/metrics"
	"cmms/internal/models"
	"cmms/internal/rbac"
	"cmms/internal/repository"
	"cmms/internal/sla"
	"cmms/internal/tenant"
	"cmms/internal/utils"
	console "cmms/internal/utils/logger"
	"cmms/internal/workflow"
	"cmms/internal/workorders"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

// Deps are the optional collaborators of the API server. A nil Redis
// keeps the tenant cache in memory; a nil Queue runs audit purges inline.
type Deps struct {
	Redis  *redis.Client
	Queue  handlers.PurgeQueue
	Events *events.EventBus
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	db     *gorm.DB

	tokens   *utils.TokenIssuer
	users    *repository.UserRepository
	tenants  *repository.TenantRepository
	rbacRepo *repository.RBACRepository
	resolver *tenant.Resolver
	guard    *rbac.Guard
	recorder *audit.Recorder
	slaRules *repository.SlaRuleRepository
	sla      *sla.Engine
	flows    *workflow.Service
	orders   *workorders.Service
	deps     Deps
}

var log = console.New("API-Server")

// NewServer @title CMMS API
// @version 1.0
// @description Multi-tenant maintenance management API.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func NewServer(cfg *config.Config, db *gorm.DB, deps Deps) (*Server, error) {
	if deps.Events == nil {
		deps.Events = events.NewEventBus()
	}

	e := echo.New()
	e.HideBanner = true
	ipExtractor, err := utils.NewIPExtractor(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, log.Error("Invalid trusted proxy list", err)
	}
	e.IPExtractor = ipExtractor
	e.Validator = validator.NewValidator()
	e.HTTPErrorHandler = customHTTPErrorHandler

	s := &Server{echo: e, config: cfg, db: db, deps: deps}
	s.wire()

	// Configure middleware
	e.Use(apimw.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentLength,
			apimw.HeaderTenantID, apimw.HeaderTenantSlug, apimw.HeaderPlantID, console.RequestIDHeader,
		},
		ExposeHeaders: []string{console.RequestIDHeader},
	}))
	e.Use(middleware.Secure())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: cfg.Server.Timeout,
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	if cfg.Server.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	}
	e.Use(metrics.NewHTTPMetrics(cfg.Server.ServiceName).Middleware())

	if cfg.Admin.SuperadminEmail != "" {
		if err := models.CreateSuperAdminFromEnv(db, cfg); err != nil {
			log.Warn("Warning: Failed to create super admin: %v", err)
		}
	}

	s.registerRoutes()

	if cfg.Admin.PanelEnabled {
		if err := s.mountAdminPanel(); err != nil {
			return nil, log.Error("Failed to create admin panel", err)
		}
	}
	return s, nil
}

// wire builds the stores and services behind the handlers.
func (s *Server) wire() {
	cfg := s.config
	timeout := cfg.Store.Timeout

	s.tokens = utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.SigningIssuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	s.users = repository.NewUserRepository(s.db)
	s.tenants = repository.NewTenantRepository(s.db)
	s.rbacRepo = repository.NewRBACRepository(s.db)
	if cfg.RBAC.AutoMigrate {
		s.rbacRepo.MarkProvisioned()
	}
	s.recorder = audit.NewRecorder(repository.NewAuditRepository(s.db), timeout)

	var cache tenant.Cache
	if cfg.Tenant.CacheBackend == "redis" && s.deps.Redis != nil {
		cache = tenant.NewRedisCache(s.deps.Redis, cfg.Server.ServiceName, cfg.Tenant.CacheTTL)
	} else {
		cache = tenant.NewMemoryCache(cfg.Tenant.CacheTTL)
	}
	s.resolver = tenant.NewResolver(s.tenants, cache, tenant.Options{
		DefaultSlug: cfg.Tenant.DefaultSlug,
		Fallback:    tenant.Info{ID: cfg.Tenant.FallbackID, Slug: cfg.Tenant.FallbackSlug},
		Timeout:     timeout,
	})

	s.guard = rbac.NewGuard(rbac.NewEngine(s.rbacRepo, timeout), s.onBreakGlass)

	s.slaRules = repository.NewSlaRuleRepository(s.db)
	s.sla = sla.NewEngine(s.slaRules, timeout)
	s.flows = workflow.NewService(repository.NewWorkflowRepository(s.db), timeout)
	s.orders = workorders.NewService(workorders.Deps{
		WorkOrders: repository.NewWorkOrderRepository(s.db),
		Tickets:    repository.NewTicketRepository(s.db),
		Tenants:    s.tenants,
		Workflows:  s.flows,
		SLA:        s.sla,
		Audit:      s.recorder,
		Events:     s.deps.Events,
		Timeout:    timeout,
	})
}

// onBreakGlass audits and announces every use of the bootstrap bypass.
func (s *Server) onBreakGlass(ctx context.Context, req rbac.Request) {
	entry := audit.Entry{
		TenantID:   req.TenantID,
		Action:     "rbac.break_glass",
		EntityType: "permission",
		EntityID:   req.Permission,
		After:      map[string]any{"permission": req.Permission, "scope": req.Scope},
	}
	if req.Principal != nil {
		entry.ActorID = req.Principal.UserID
		entry.ActorRole = rbac.NormalizeRole(req.Principal.Role)
	}
	s.recorder.Record(ctx, entry)
	s.deps.Events.Emit(events.BreakGlassGranted, req)
}

// mountAdminPanel serves the generic admin panel to superadmins only.
func (s *Server) mountAdminPanel() error {
	group := s.echo.Group("/api/v1/superadmin/panel",
		apimw.NewAuthMiddleware(s.tokens, s.users).Middleware(),
		apimw.RequireSuperadmin(),
		apimw.AuditTrail(s.recorder, true),
	)
	gormIntegrator := admingorm.NewIntegrator(s.db)
	echoIntegrator := adminecho.NewIntegrator(group)

	// Routes are already gated by RequireSuperadmin.
	permissionChecker := func(request admin.PermissionRequest, ctx interface{}) (bool, error) {
		c, ok := ctx.(echo.Context)
		if !ok {
			return false, nil
		}
		p := apimw.GetPrincipal(c)
		return p != nil && p.IsSuperadmin(), nil
	}

	panel, err := admin.NewPanel(gormIntegrator, echoIntegrator, permissionChecker, nil)
	if err != nil {
		return err
	}
	app, err := panel.RegisterApp("CMMS", "CMMS Admin Panel", nil)
	if err != nil {
		return err
	}
	for _, model := range []interface{}{&models.Tenant{}, &models.Plant{}, &models.User{}, &models.SlaRule{}} {
		if _, err := app.RegisterModel(model, nil); err != nil {
			return err
		}
	}
	log.Success("Admin panel mounted")
	return nil
}

// Echo exposes the router, mainly for in-process tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Resolver exposes the tenant resolver so callers can reset its cache.
func (s *Server) Resolver() *tenant.Resolver {
	return s.resolver
}

// Recorder exposes the audit recorder for the background purge task.
func (s *Server) Recorder() *audit.Recorder {
	return s.recorder
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health check endpoint
func (s *Server) healthCheck(c echo.Context) error {
	status := "healthy"
	code := http.StatusOK
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"status":  status,
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// statusCode maps a bare HTTP status onto the error codes used by the
// application errors.
func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindInvalidInput.String()
	case http.StatusUnauthorized:
		return apperr.KindUnauthenticated.String()
	case http.StatusForbidden:
		return apperr.KindForbidden.String()
	case http.StatusNotFound:
		return apperr.KindNotFound.String()
	case http.StatusConflict:
		return apperr.KindInvalidTransition.String()
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	}
	if status >= http.StatusInternalServerError {
		return apperr.KindInternal.String()
	}
	return http.StatusText(status)
}

// Custom HTTP error handler
func customHTTPErrorHandler(err error, c echo.Context) {
	var (
		status     = http.StatusInternalServerError
		code       string
		message    interface{}
		permission string
		fields     map[string]string
	)

	var (
		he *echo.HTTPError
		ve validator.ValidationErrors
	)
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		code = apperr.KindInvalidInput.String()
		message = "Validation failed"
		fields = formatValidationErrors(ve)
	case errors.As(err, &he):
		status = he.Code
		code = statusCode(status)
		message = he.Message
		if he.Internal != nil {
			console.FromEcho(c).Warn("http error", zap.Int("status", status), zap.Error(he.Internal))
		}
	default:
		ae := apperr.As(err)
		status = ae.Kind.Status()
		code = ae.ResponseCode()
		message = ae.Message
		permission = ae.Permission
		if ae.Kind == apperr.KindInternal {
			console.FromEcho(c).Error("request failed",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		body := map[string]interface{}{
			"error":     message,
			"code":      code,
			"requestId": apimw.GetRequestID(c),
			"time":      time.Now().Format(time.RFC3339),
		}
		if permission != "" {
			body["permission"] = permission
		}
		if fields != nil {
			body["fields"] = fields
		}
		err = c.JSON(status, body)
	}
	if err != nil {
		c.Echo().Logger.Error(err)
	}
}

// formatValidationErrors formats validation errors into a map
func formatValidationErrors(errors validator.ValidationErrors) map[string]string {
	errMap := make(map[string]string)
	for _, err := range errors {
		field := err.Field()
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errMap[field] = fmt.Sprintf("%s is required", field)
		case "email":
			errMap[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			errMap[field] = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			errMap[field] = fmt.Sprintf("%s must be at most %s", field, param)
		case "uuid":
			errMap[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "oneof":
			errMap[field] = fmt.Sprintf("%s must be one of [%s]", field, param)
		case "gt":
			errMap[field] = fmt.Sprintf("%s must be greater than %s", field, param)
		case "lowercase":
			errMap[field] = fmt.Sprintf("%s must be lowercase", field)
		case "priority":
			errMap[field] = fmt.Sprintf("%s must be one of: baixa, media, alta, critica", field)
		case "wo_status":
			errMap[field] = fmt.Sprintf("%s is not a work order status", field)
		case "sla_entity":
			errMap[field] = fmt.Sprintf("%s must be work_order or ticket", field)
		case "permission":
			errMap[field] = fmt.Sprintf("%s is not a known permission", field)
		case "role_key":
			errMap[field] = fmt.Sprintf("%s is not a valid role", field)
		default:
			errMap[field] = fmt.Sprintf("%s failed validation: %s", field, tag)
		}
	}
	return errMap
}
