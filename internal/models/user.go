package models

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleCourier  Role = "courier"
	RoleClient   Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleCourier, RoleClient:
		return true
	}
	return false
}

// Staff roles are created by an administrator, never by self-registration.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleOperator || r == RoleCourier
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Business     bool      `json:"business"`
	CreatedAt    time.Time `json:"created_at"`
}
