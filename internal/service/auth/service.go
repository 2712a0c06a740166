package auth

import (
	"errors"

	"log/slog"

	"github.com/Harsha29-kns/hackforge-backend/pkg/config"
	"github.com/Harsha29-kns/hackforge-backend/pkg/crypto"
	jwtpkg "github.com/Harsha29-kns/hackforge-backend/pkg/jwt"
)

// RoleAdmin is the only console role.
const RoleAdmin = "admin"

var (
	ErrNotConfigured = errors.New("admin authentication is not configured")
	ErrBadCredential = errors.New("invalid admin credential")
)

// Service issues and validates admin console tokens. The admin password
// lives as a bcrypt hash in configuration; there is no user table for it.
type Service struct {
	cfg    config.AppConfig
	logger *slog.Logger
}

// New constructs a Service.
func New(cfg config.AppConfig, logger *slog.Logger) Service {
	return Service{cfg: cfg, logger: logger}
}

// Login verifies the admin password and returns a bearer token.
func (s Service) Login(password string) (string, error) {
	if s.cfg.AdminPasswordHash == "" {
		return "", ErrNotConfigured
	}
	if err := crypto.ComparePassword([]byte(s.cfg.AdminPasswordHash), password); err != nil {
		return "", ErrBadCredential
	}
	token, err := jwtpkg.GenerateToken("console", RoleAdmin, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", err
	}
	s.logger.Info("admin console authenticated")
	return token, nil
}

// Authorize validates a bearer token and requires the admin role.
func (s Service) Authorize(token string) (*jwtpkg.Claims, error) {
	claims, err := jwtpkg.Parse(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrBadCredential
	}
	return claims, nil
}
