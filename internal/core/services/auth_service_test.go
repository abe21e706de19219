package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret", 15*time.Minute)

	token, err := svc.GenerateToken("teacher-1", RoleTeacher)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", string(claims.UserID))
	assert.Equal(t, RoleTeacher, claims.Role)
	assert.True(t, claims.IsTeacher())
}

func TestAuthStudentRole(t *testing.T) {
	svc := NewAuthService("test-secret", 15*time.Minute)

	token, err := svc.GenerateToken("student-1", "student")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.False(t, claims.IsTeacher())
}

func TestAuthExpiredToken(t *testing.T) {
	svc := NewAuthService("test-secret", -time.Minute)

	token, err := svc.GenerateToken("teacher-1", RoleTeacher)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthWrongSecret(t *testing.T) {
	issuer := NewAuthService("secret-a", 15*time.Minute)
	verifier := NewAuthService("secret-b", 15*time.Minute)

	token, err := issuer.GenerateToken("teacher-1", RoleTeacher)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthGarbageToken(t *testing.T) {
	svc := NewAuthService("test-secret", 15*time.Minute)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
