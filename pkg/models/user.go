// Package models contains shared data models used across the booking codebase.
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	RoleCustomer   = "customer"
	RoleTranslator = "translator"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User is any authenticated actor: customers book jobs, translators accept and
// deliver them, admins operate the platform.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Email     string    `db:"email"      json:"email"`
	Phone     string    `db:"phone"      json:"phone"`
	Role      string    `db:"role"       json:"role"`
	Languages []string  `db:"languages"  json:"languages,omitempty"`
	Available bool      `db:"available"  json:"available"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Speaks reports whether the user lists the given language capability.
func (u *User) Speaks(lang string) bool {
	return slices.Contains(u.Languages, lang)
}

// IsAdmin reports whether the user holds an operator role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
