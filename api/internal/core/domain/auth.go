package domain

import "context"

type contextKey string

// UserContextKey is where RequireAuthentication stores *UserClaims.
const UserContextKey contextKey = "user_claims"

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "hostpanel_access_token"

// UserClaims is the verified identity attached to a request.
type UserClaims struct {
	Subject string
}

// ActorFromContext names the caller for audit records.
func ActorFromContext(ctx context.Context) string {
	if claims, ok := ctx.Value(UserContextKey).(*UserClaims); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "system"
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
	ValidateAccessToken(ctx context.Context, token string) (*UserClaims, error)
	Enabled() bool
}
