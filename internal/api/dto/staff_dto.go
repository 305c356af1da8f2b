package dto

import (
	"time"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// CreateStaffRequest registers a new account.
type CreateStaffRequest struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Role       domain.StaffRole  `json:"role"`
	Department domain.Department `json:"department"`
	City       string            `json:"city"`
}

// UpdateStaffRequest patches an account. Omitted fields are unchanged.
type UpdateStaffRequest struct {
	Name       *string            `json:"name"`
	Email      *string            `json:"email"`
	Role       *domain.StaffRole  `json:"role"`
	Department *domain.Department `json:"department"`
	City       *string            `json:"city"`
	Active     *bool              `json:"active"`
}

// StaffResponse is the admin view of an account.
type StaffResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email,omitempty"`
	Role       domain.StaffRole  `json:"role"`
	Department domain.Department `json:"department,omitempty"`
	City       string            `json:"city,omitempty"`
	Points     int               `json:"points"`
	Active     bool              `json:"active"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
