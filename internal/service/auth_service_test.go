package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

func TestAuthService_Login(t *testing.T) {
	hash, err := utils.HashPassword("correct horse")
	require.NoError(t, err)
	svc := NewAuthService(&config.Config{
		AdminUsername:     "keiri",
		AdminPasswordHash: hash,
		JWTSecret:         "test-secret",
		JWTAccessExpire:   time.Hour,
	})

	resp, err := svc.Login(models.LoginRequest{Username: "keiri", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, resp.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "keiri", claims.Username)

	_, err = svc.Login(models.LoginRequest{Username: "keiri", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(models.LoginRequest{Username: "someone", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
