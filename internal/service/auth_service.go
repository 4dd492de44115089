package service

import (
	"crypto/subtle"
	"errors"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

const RoleOperator = "operator"

var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService authenticates the single operator configured through
// ADMIN_USERNAME and ADMIN_PASSWORD_HASH.
type AuthService struct {
	cfg *config.Config
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

func (s *AuthService) Login(req models.LoginRequest) (*models.LoginResponse, error) {
	if subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.AdminUsername)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(req.Password, s.cfg.AdminPasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := utils.GenerateAccessToken(req.Username, RoleOperator, s.cfg.JWTSecret, s.cfg.JWTAccessExpire)
	if err != nil {
		return nil, errors.New("failed to generate access token")
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Unix(),
		Username:    req.Username,
		Role:        RoleOperator,
	}, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*utils.JWTClaims, error) {
	return utils.ValidateToken(tokenString, s.cfg.JWTSecret)
}
