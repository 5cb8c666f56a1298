package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

const (
	visitorRate  = rate.Limit(10)
	visitorBurst = 30
	visitorTTL   = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

type AuthMiddleware struct {
	AuthService domain.AuthService
	Logger      *slog.Logger
	visitors    sync.Map
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewAuthMiddleware(authService domain.AuthService, logger *slog.Logger) *AuthMiddleware {
	m := &AuthMiddleware{
		AuthService: authService,
		Logger:      logger.With(slog.String("component", "auth_middleware")),
		stop:        make(chan struct{}),
	}
	go m.cleanupVisitors()
	return m
}

// Close stops the visitor cleanup loop.
func (m *AuthMiddleware) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// ==============================================================================
// 1. Identity
// ==============================================================================

// RequireAuthentication verifies the access token and stores the claims on
// the request context. It is a pass-through when auth is disabled.
func (m *AuthMiddleware) RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.AuthService.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := m.AuthService.ValidateAccessToken(r.Context(), tokenString)
		if err != nil {
			m.Logger.Warn("rejected access token", slog.String("error", err.Error()))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), domain.UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(domain.AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	// Browsers cannot set headers on EventSource or WebSocket handshakes
	if r.Header.Get("Upgrade") != "" || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// ==============================================================================
// 2. DoS Protection
// ==============================================================================

// RateLimit applies a per-client token bucket keyed by remote IP. RealIP must
// run first so proxied clients are told apart.
func (m *AuthMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		v, _ := m.visitors.LoadOrStore(ip, &visitor{
			limiter:  rate.NewLimiter(visitorRate, visitorBurst),
			lastSeen: time.Now(),
		})
		vis := v.(*visitor)
		vis.touch()

		if !vis.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *visitor) touch() {
	v.mu.Lock()
	v.lastSeen = time.Now()
	v.mu.Unlock()
}

func (v *visitor) idleFor() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return time.Since(v.lastSeen)
}

func (m *AuthMiddleware) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.visitors.Range(func(key, value any) bool {
				if value.(*visitor).idleFor() > visitorTTL {
					m.visitors.Delete(key)
				}
				return true
			})
		}
	}
}
