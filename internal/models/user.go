package models

import "time"

// User roles, from most to least privileged. Locked users keep their row
// but every object endpoint rejects them.
const (
	RoleSuperuser     = "superuser"
	RoleStaff         = "staff"
	RoleAuthenticated = "authenticated"
	RoleLocked        = "locked"
)

// ValidRole reports whether role is one of the known user roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperuser, RoleStaff, RoleAuthenticated, RoleLocked:
		return true
	}
	return false
}

// User represents a vizinspect account.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	// verification and reset tokens are never serialized to clients
	EmailVerifyToken   *string    `db:"email_verify_token" json:"-"`
	PasswordResetToken *string    `db:"password_reset_token" json:"-"`
	ResetTokenExpires  *time.Time `db:"reset_token_expires" json:"-"`
}

// CanReview reports whether the user may view and vote on objects.
func (u User) CanReview() bool {
	return u.IsActive && u.Role != RoleLocked
}

// IsSuperuser reports whether the user may use the admin panel.
func (u User) IsSuperuser() bool {
	return u.Role == RoleSuperuser
}
