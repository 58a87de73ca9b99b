package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

func TestHashAndCheckPassword(t *testing.T) {
	s := NewService("test-secret", 30)

	hash, err := s.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.NoError(t, s.CheckPassword("correct horse battery staple", hash))
	require.Error(t, s.CheckPassword("wrong password entirely", hash))
}

func TestHashPasswordTooShort(t *testing.T) {
	s := NewService("test-secret", 30)

	_, err := s.HashPassword("short")
	require.Error(t, err)
}

func TestGenerateAndVerifyToken(t *testing.T) {
	s := NewService("test-secret", 30)

	u := models.User{
		ID:       "c0ffee00-1111-2222-3333-444455556666",
		Email:    "reviewer@astro.example.edu",
		FullName: "Test Reviewer",
		Role:     models.RoleAuthenticated,
	}

	tok, err := s.GenerateToken(u)
	require.NoError(t, err)

	claims, err := s.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims["user_id"])
	assert.Equal(t, u.Email, claims["email"])
	assert.Equal(t, models.RoleAuthenticated, claims["role"])

	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	assert.Greater(t, int64(exp), time.Now().Unix())
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	s1 := NewService("secret-one", 30)
	s2 := NewService("secret-two", 30)

	tok, err := s1.GenerateToken(models.User{ID: "x", Role: models.RoleStaff})
	require.NoError(t, err)

	_, err = s2.VerifyToken(tok)
	require.Error(t, err)
}

func TestVerifyTokenGarbage(t *testing.T) {
	s := NewService("test-secret", 30)
	_, err := s.VerifyToken("not.a.jwt")
	require.Error(t, err)
}
