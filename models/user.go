package models

import "time"

// Dashboard user roles. Storefront customers never log in here, but their role may arrive in a
// storefront-issued token and is used for tracking exclusions.
const (
	RoleAdministrator = "administrator"
	RoleShopManager   = "shop_manager"
	RoleCustomer      = "customer"
)

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=administrator shop_manager"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	HashedPassword []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CanViewReports reports whether role may read aggregated metrics.
func CanViewReports(role string) bool {
	return role == RoleAdministrator || role == RoleShopManager
}

// CanManageUsers reports whether role may create dashboard accounts.
func CanManageUsers(role string) bool {
	return role == RoleAdministrator
}
