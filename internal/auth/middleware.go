package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type contextKey struct{}

// WithViewer returns a context carrying the authenticated viewer's email.
func WithViewer(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKey{}, email)
}

// ViewerFromContext returns the authenticated viewer's email.
func ViewerFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(contextKey{}).(string)
	return email, ok && email != ""
}

// failureLimiter tracks failed API key attempts per IP.
type failureLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func (fl *failureLimiter) get(ip string) *rate.Limiter {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	lim, ok := fl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(fl.every, fl.burst)
		fl.limiters[ip] = lim
	}
	return lim
}

// blocked reports whether ip has used up its failed attempts.
func (fl *failureLimiter) blocked(ip string) bool {
	return fl.get(ip).Tokens() < 1
}

func (fl *failureLimiter) fail(ip string) {
	fl.get(ip).Allow()
}

// Authenticator validates Bearer API keys on /api/ routes.
type Authenticator struct {
	keys    *APIKeyStore
	limiter *failureLimiter
}

// NewAuthenticator allows perMinute failed attempts per IP with the given
// burst before answering 429.
func NewAuthenticator(keys *APIKeyStore, perMinute, burst int) *Authenticator {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &Authenticator{
		keys: keys,
		limiter: &failureLimiter{
			limiters: make(map[string]*rate.Limiter),
			every:    rate.Every(time.Minute / time.Duration(perMinute)),
			burst:    burst,
		},
	}
}

// RequireAPIKey is middleware that validates Bearer token auth for /api/ routes.
// Non-API routes pass through untouched.
// Returns 401 for missing/invalid keys, 429 for rate-limited IPs.
func (a *Authenticator) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if a.limiter.blocked(ip) {
			writeError(w, "too many requests", "rate_limited", http.StatusTooManyRequests)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.limiter.fail(ip)
			writeError(w, "authorization required", "unauthorized", http.StatusUnauthorized)
			return
		}

		email, err := a.keys.Validate(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			slog.Error("validating api key", "error", err)
			writeError(w, "internal error", "internal", http.StatusInternalServerError)
			return
		}
		if email == "" {
			a.limiter.fail(ip)
			slog.Warn("invalid api key", "ip", ip)
			writeError(w, "invalid API key", "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), email)))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, msg, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code}); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}
