// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// RegisterRequest needs TenantName unless the email belongs to the
// global-admin domain; the service enforces that rule.
type RegisterRequest struct {
	Name       string `json:"name"        validate:"required,min=1,max=100"`
	Email      string `json:"email"       validate:"required,email,max=255"`
	Password   string `json:"password"    validate:"required,strongpassword,max=128"`
	TenantName string `json:"tenant_name" validate:"omitempty,min=3,max=50"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type UserResponse struct {
	ID            string  `json:"id"`
	TenantID      *string `json:"tenant_id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	IsGlobalAdmin bool    `json:"is_global_admin"`
}

type LoginResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type ResetPasswordResponse struct {
	Message string `json:"message"`
	// TemporaryPassword is only returned to global admins.
	TemporaryPassword string    `json:"temporary_password,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type MeResponse struct {
	UserResponse
	ExpiresAt time.Time `json:"session_expires_at"`
}
