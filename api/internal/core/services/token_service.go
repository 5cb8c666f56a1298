package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer     = "hostpanel"
	tokenTypeAccess = "access"
	accessTokenTTL  = 15 * time.Minute
)

// PanelClaims is the stateless payload of an access token.
type PanelClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: accessTokenTTL, now: time.Now}
}

// IssueAccessToken mints a short-lived HS256 token for subject.
func (s *TokenService) IssueAccessToken(subject string) (string, error) {
	now := s.now()
	claims := PanelClaims{
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, expiry, issuer and token type and
// returns the subject.
func (s *TokenService) VerifyAccessToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PanelClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC; rejects alg=none and key-confusion attempts
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("invalid token signature or expired: %w", err)
	}

	claims, ok := token.Claims.(*PanelClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if claims.TokenType != tokenTypeAccess {
		return "", fmt.Errorf("invalid token type: expected access")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("malformed subject claim")
	}
	return claims.Subject, nil
}
