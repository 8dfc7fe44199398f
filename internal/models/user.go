package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleWorkshop   UserRole = "WORKSHOP"
	RoleWorker     UserRole = "WORKER"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	CompanyID    string     `db:"company_id" json:"company_id"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DisplayName resolves the name shown in review attributions: first plus
// last name when both are set, else the full name, else the email, else a
// generic fallback.
func (u *User) DisplayName() string {
	if u == nil {
		return "Supervisor"
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	if first != "" && last != "" {
		return first + " " + last
	}
	if full := strings.TrimSpace(u.FullName); full != "" {
		return full
	}
	if email := strings.TrimSpace(u.Email); email != "" {
		return email
	}
	return "Supervisor"
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
