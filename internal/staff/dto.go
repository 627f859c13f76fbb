package staff

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// LoginRequest captures the staff credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type StaffDTO struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"displayName"`
	Role        enums.StaffRole `json:"role"`
	LastLoginAt *time.Time      `json:"lastLoginAt,omitempty"`
}

type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Staff       *StaffDTO `json:"staff"`
}

// CreateParams seeds a new staff account.
type CreateParams struct {
	Email       string
	DisplayName string
	Role        enums.StaffRole
	Password    string
}

func FromModel(m *models.StaffUser) *StaffDTO {
	if m == nil {
		return nil
	}
	return &StaffDTO{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Role:        m.Role,
		LastLoginAt: m.LastLoginAt,
	}
}
