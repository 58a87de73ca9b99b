package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

// ErrTokenInvalid is returned when a verification or reset token does not
// match any user or has expired.
var ErrTokenInvalid = errors.New("token is invalid or has expired")

// CreateUser creates a new user row.
func (d *Database) CreateUser(user models.User) error {
	_, err := d.db.Exec(`
		INSERT INTO users
		(id, email, full_name, password_hash, role, is_active,
		 created_at, updated_at, email_verify_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, user.Role,
		user.IsActive, user.CreatedAt, user.UpdatedAt, user.EmailVerifyToken)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail gets a user by email.
func (d *Database) GetUserByEmail(email string) (models.User, error) {
	var user models.User
	err := d.db.Get(&user, `SELECT * FROM users WHERE email = $1`, email)
	return user, err
}

// GetUserByID gets a user by ID.
func (d *Database) GetUserByID(id string) (models.User, error) {
	var user models.User
	err := d.db.Get(&user, `SELECT * FROM users WHERE id = $1`, id)
	return user, err
}

// ListUsers returns all users ordered by creation time.
func (d *Database) ListUsers() ([]models.User, error) {
	var users []models.User
	err := d.db.Select(&users, `SELECT * FROM users ORDER BY created_at`)
	return users, err
}

// CountSuperusers returns the number of active superuser accounts. The
// admin panel refuses role changes that would leave zero.
func (d *Database) CountSuperusers() (int, error) {
	var n int
	err := d.db.Get(&n, `
		SELECT COUNT(*) FROM users
		WHERE role = $1 AND is_active = TRUE
	`, models.RoleSuperuser)
	return n, err
}

// UpdateUserRole sets the role and active flag for a user.
func (d *Database) UpdateUserRole(id, role string, isActive bool, now time.Time) error {
	if !models.ValidRole(role) {
		return fmt.Errorf("unknown role: %q", role)
	}
	res, err := d.db.Exec(`
		UPDATE users SET role = $1, is_active = $2, updated_at = $3
		WHERE id = $4
	`, role, isActive, now, id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return oneRowAffected(res)
}

// VerifyUserEmail activates the account holding the given signup
// verification token and clears the token.
func (d *Database) VerifyUserEmail(token string, now time.Time) (models.User, error) {
	var user models.User
	err := d.db.Get(&user, `
		SELECT * FROM users WHERE email_verify_token = $1
	`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrTokenInvalid
	}
	if err != nil {
		return models.User{}, err
	}

	_, err = d.db.Exec(`
		UPDATE users
		SET is_active = TRUE, email_verify_token = NULL, updated_at = $1
		WHERE id = $2
	`, now, user.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("verify user email: %w", err)
	}

	user.IsActive = true
	user.EmailVerifyToken = nil
	return user, nil
}

// SetPasswordResetToken stores a reset token and its expiry for the user
// with the given email.
func (d *Database) SetPasswordResetToken(email, token string, expires, now time.Time) error {
	res, err := d.db.Exec(`
		UPDATE users
		SET password_reset_token = $1, reset_token_expires = $2, updated_at = $3
		WHERE email = $4 AND is_active = TRUE
	`, token, expires, now, email)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return oneRowAffected(res)
}

// ResetPassword replaces the password hash for the account holding a live
// reset token, then clears the token.
func (d *Database) ResetPassword(token, newHash string, now time.Time) error {
	res, err := d.db.Exec(`
		UPDATE users
		SET password_hash = $1, password_reset_token = NULL,
		    reset_token_expires = NULL, updated_at = $2
		WHERE password_reset_token = $3 AND reset_token_expires > $4
	`, newHash, now, token, now)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if err := oneRowAffected(res); err != nil {
		return ErrTokenInvalid
	}
	return nil
}

// UpdatePassword replaces the password hash for a logged-in user.
func (d *Database) UpdatePassword(id, newHash string, now time.Time) error {
	res, err := d.db.Exec(`
		UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3
	`, newHash, now, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return oneRowAffected(res)
}

// ScrubUser deactivates an account and removes its personal data. Comments
// the user already made keep their userid reference, so the row itself is
// retained rather than deleted. Review assignments are released.
func (d *Database) ScrubUser(id string, now time.Time) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM review_assignments WHERE userid = $1`, id); err != nil {
		return fmt.Errorf("release assignments: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE users
		SET email = 'deleted-' || id, full_name = 'deleted account',
		    password_hash = '', role = $1, is_active = FALSE,
		    email_verify_token = NULL, password_reset_token = NULL,
		    reset_token_expires = NULL, updated_at = $2
		WHERE id = $3
	`, models.RoleLocked, now, id)
	if err != nil {
		return fmt.Errorf("scrub user: %w", err)
	}
	if err := oneRowAffected(res); err != nil {
		return err
	}

	return tx.Commit()
}

func oneRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
	return nil
}
