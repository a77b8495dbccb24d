// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

// UpdateProfileRequest is the self-service edit.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"     validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email,omitempty"    validate:"omitempty,email,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,strongpassword,max=128"`
}

// UpdateUserRequest is the management edit of another user.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"      validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email,omitempty"     validate:"omitempty,email,max=255"`
	Password *string `json:"password,omitempty"  validate:"omitempty,strongpassword,max=128"`
	Role     *string `json:"role,omitempty"      validate:"omitempty,oneof=admin analyst viewer"`
	TenantID *string `json:"tenant_id,omitempty" validate:"omitempty,uuid"`
}

type UserResponse struct {
	ID                     string    `json:"id"`
	TenantID               *string   `json:"tenant_id"`
	Name                   string    `json:"name"`
	Email                  string    `json:"email"`
	Role                   string    `json:"role"`
	MetricsCreated         int       `json:"metrics_created"`
	MetricsCreatedValuable int       `json:"metrics_created_valuable"`
	CanBeAnalyst           bool      `json:"can_be_analyst"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                     u.ID,
		TenantID:               u.TenantID,
		Name:                   u.Name,
		Email:                  u.Email,
		Role:                   string(u.Role),
		MetricsCreated:         u.MetricsCreated,
		MetricsCreatedValuable: u.MetricsCreatedValuable,
		CanBeAnalyst:           u.CanBeAnalyst,
		CreatedAt:              u.CreatedAt,
		UpdatedAt:              u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}
