package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cmms/internal/api/middleware"
	"cmms/internal/api/validator"
	"cmms/internal/apperr"
	"cmms/internal/audit"
	"cmms/internal/models"
	"cmms/internal/repository"
	"cmms/internal/utils"
	"cmms/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the user persistence the auth endpoints need.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type AuthHandler struct {
	users  UserStore
	tokens *utils.TokenIssuer
	audit  middleware.Auditor
	log    *logger.Logger
}

func NewAuthHandler(users UserStore, tokens *utils.TokenIssuer, auditor middleware.Auditor) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, audit: auditor, log: logger.New("AuthHandler")}
}

type TokenResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required,role_key"`
}

func (h *AuthHandler) issue(c echo.Context, user *models.User) error {
	token, err := h.tokens.GenerateJWT(user)
	if err != nil {
		return apperr.Internal(err)
	}
	refreshToken, err := h.tokens.GenerateRefreshToken(user)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token, RefreshToken: refreshToken, User: user})
}

// Login handles user login by validating credentials, generating a JWT token, and returning it.
// @Summary Login user
// @Description Authenticate user and return access and refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.LoginRequest true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req validator.LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.users.FindByEmail(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return apperr.Unauthenticated("Invalid credentials")
	}
	if !user.IsActive {
		return apperr.Unauthenticated("User is inactive")
	}

	h.log.Info("User %s logged in", user.ID)
	return h.issue(c, user)
}

// RefreshToken exchanges a refresh token for a new token pair.
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.RefreshRequest true "Refresh token"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} map[string]string "Invalid token"
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req validator.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	claims, err := h.tokens.Parse(req.RefreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return apperr.Unauthenticated("Invalid refresh token")
	}
	user, err := h.users.FindByID(c.Request().Context(), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Unauthenticated("User not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if !user.IsActive {
		return apperr.Unauthenticated("User is inactive")
	}
	return h.issue(c, user)
}

// GetMe returns the authenticated user and the resolved tenant.
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /me [get]
func (h *AuthHandler) GetMe(c echo.Context) error {
	user, err := h.users.FindByID(c.Request().Context(), middleware.GetUserID(c))
	if err != nil {
		return apperr.Unauthenticated("User not found")
	}
	info, _ := middleware.GetTenant(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":   user,
		"tenant": info,
	})
}

// CreateUser adds a user to the current tenant.
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "User"
// @Success 201 {object} models.User
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Router /users [post]
func (h *AuthHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	role := models.NormalizeRole(req.Role)
	if role == models.RoleSuperadmin {
		return apperr.Forbidden("Superadmins cannot be created here", models.PermAdminUsers)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request().Context()
	if _, err := h.users.FindByEmail(ctx, email); err == nil {
		return apperr.InvalidInput("Email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperr.Internal(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Internal(err)
	}
	user := &models.User{
		TenantID: middleware.GetTenantID(c),
		Email:    email,
		Password: string(hashedPassword),
		Name:     req.Name,
		Role:     role,
		IsActive: true,
	}
	if err := h.users.Create(ctx, user); err != nil {
		return apperr.Internal(err)
	}

	h.audit.Record(ctx, audit.Entry{
		TenantID:   user.TenantID,
		ActorID:    middleware.GetUserID(c),
		ActorRole:  middleware.GetEffectiveRole(c),
		Action:     "user.create",
		EntityType: "user",
		EntityID:   user.ID,
		After:      map[string]any{"email": user.Email, "role": user.Role},
		IPAddress:  middleware.ActorIP(c),
		RequestID:  middleware.GetRequestID(c),
	})
	return c.JSON(http.StatusCreated, user)
}
