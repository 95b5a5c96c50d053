package auth

import (
	"strings"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/user"
)

type RegisterDTO struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone,omitempty"`
	Role     user.Role `json:"role"`
	ShopName string    `json:"shop_name,omitempty"`
}

func (dto RegisterDTO) Validate() error {
	if !strings.Contains(dto.Email, "@") {
		return internal.NewValidationError("a valid email is required", internal.ErrCodeValidationFailed)
	}
	if len(dto.Password) < 8 {
		return internal.NewValidationError("password must be at least 8 characters", internal.ErrCodeValidationFailed)
	}
	switch dto.Role {
	case user.RoleCustomer:
	case user.RoleMerchant:
		if dto.ShopName == "" {
			return internal.NewValidationError("shop_name is required for merchants", internal.ErrCodeValidationFailed)
		}
	default:
		return internal.NewValidationError("role must be customer or merchant", internal.ErrCodeValidationFailed)
	}
	return nil
}

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	User        *user.User `json:"user"`
}
