package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

// MinPasswordLength is enforced at signup and password change.
const MinPasswordLength = 12

// ErrPasswordTooShort is returned by HashPassword for passwords under
// MinPasswordLength.
var ErrPasswordTooShort = fmt.Errorf(
	"password must be at least %d characters", MinPasswordLength)

// Service handles password hashing and session token operations.
type Service struct {
	jwtSecret     string
	sessionExpiry time.Duration
}

// NewService creates a new authentication service. expiryDays controls how
// long issued session tokens stay valid.
func NewService(jwtSecret string, expiryDays int) *Service {
	return &Service{
		jwtSecret:     jwtSecret,
		sessionExpiry: time.Duration(expiryDays) * 24 * time.Hour,
	}
}

// HashPassword creates a password hash.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword verifies a password against a hash.
func (s *Service) CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// SessionExpiry returns the configured session token lifetime.
func (s *Service) SessionExpiry() time.Duration {
	return s.sessionExpiry
}

// GenerateToken creates a new session JWT for a user.
func (s *Service) GenerateToken(user models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      user.Role,
		"exp":       time.Now().Add(s.sessionExpiry).Unix(),
	})
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyToken validates a session JWT and returns the claims.
func (s *Service) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
