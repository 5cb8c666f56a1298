package services

import (
	"context"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// ErrInvalidCredentials is returned for any failed login, whatever the reason.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminAuthService authenticates the single configured operator account.
type AdminAuthService struct {
	tokens       *TokenService
	username     string
	passwordHash []byte
}

var _ domain.AuthService = (*AdminAuthService)(nil)

// NewAdminAuthService returns a service with auth disabled when secret is empty.
func NewAdminAuthService(secret, username, passwordHash string) *AdminAuthService {
	s := &AdminAuthService{username: username, passwordHash: []byte(passwordHash)}
	if secret != "" {
		s.tokens = NewTokenService(secret)
	}
	return s
}

func (s *AdminAuthService) Enabled() bool { return s.tokens != nil }

func (s *AdminAuthService) Login(ctx context.Context, username, password string) (string, error) {
	if !s.Enabled() || len(s.passwordHash) == 0 {
		return "", ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", ErrInvalidCredentials
	}

	return s.tokens.IssueAccessToken(s.username)
}

func (s *AdminAuthService) ValidateAccessToken(ctx context.Context, token string) (*domain.UserClaims, error) {
	if !s.Enabled() {
		return nil, errors.New("authentication is disabled")
	}
	subject, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &domain.UserClaims{Subject: subject}, nil
}
