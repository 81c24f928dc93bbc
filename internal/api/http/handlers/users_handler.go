package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/propertyhub/maintenance-service/internal/api/dto"
	"github.com/propertyhub/maintenance-service/internal/auth"
	"github.com/propertyhub/maintenance-service/internal/domain"
	"github.com/propertyhub/maintenance-service/internal/service"
	apperrors "github.com/propertyhub/maintenance-service/pkg/util"
)

// UsersHandler exposes registration, login and identity administration.
type UsersHandler struct {
	service *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{service: authService}
}

// RegisterTenant POST /auth/tenants/register.
func (h *UsersHandler) RegisterTenant(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.service.RegisterTenant(c.Context(), service.RegisterInput{
		Username:    req.Username,
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		ApartmentID: req.ApartmentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// RegisterStaff POST /staff/users (admin only).
func (h *UsersHandler) RegisterStaff(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.service.RegisterStaff(c.Context(), service.RegisterInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(strings.ToUpper(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      userResponse(result.User),
	}})
}

// Activate POST /staff/users/:id/activate (admin only).
func (h *UsersHandler) Activate(c *fiber.Ctx) error {
	user, err := h.service.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Me GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": userResponse(principal.User)})
}

func userResponse(user *domain.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Name:        user.Name,
		Role:        user.Role,
		Status:      user.Status,
		ApartmentID: user.ApartmentID,
		CreatedAt:   user.CreatedAt,
	}
	if user.Role == domain.RoleTenant {
		balance := user.DebtBalance
		resp.DebtBalance = &balance
	}
	return resp
}
