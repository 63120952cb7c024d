package auth

import (
	"errors"
	"strings"
)

var (
	// ErrNotConfigured is returned when no signing secret is set.
	ErrNotConfigured = errors.New("admin tokens not configured")
	// ErrInvalidName is returned when the operator name doesn't meet constraints.
	ErrInvalidName = errors.New("invalid operator name")
	// ErrNotAdmin is returned for valid tokens without the admin claim.
	ErrNotAdmin = errors.New("token lacks admin claim")
)

// Service issues and validates operator tokens for the admin API.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new token service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// Enabled reports whether a signing secret is configured.
func (s *Service) Enabled() bool {
	return s.jwtConfig != nil && len(s.jwtConfig.Secret) > 0
}

// IssueToken mints an admin token for the named operator.
func (s *Service) IssueToken(name string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 64 {
		return "", ErrInvalidName
	}
	return GenerateToken(s.jwtConfig, name, true)
}

// ValidateToken validates a JWT token and requires the admin claim.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.Admin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}
