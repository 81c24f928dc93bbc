package dto

import (
	"time"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username    string  `json:"username"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	ApartmentID *string `json:"apartment_id"`
}

// LoginRequest is the credential payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the issued token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse projects an identity. DebtBalance is only populated for
// tenants.
type UserResponse struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	Name        string            `json:"name"`
	Role        domain.Role       `json:"role"`
	Status      domain.UserStatus `json:"status"`
	ApartmentID *string           `json:"apartment_id,omitempty"`
	DebtBalance *float64          `json:"debt_balance,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
