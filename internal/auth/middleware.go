package auth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type contextKey struct{}

// KeyFromContext returns the API key that authenticated the request.
func KeyFromContext(ctx context.Context) (*APIKey, bool) {
	k, ok := ctx.Value(contextKey{}).(*APIKey)
	return k, ok
}

// WithKey returns a copy of ctx carrying k.
func WithKey(ctx context.Context, k *APIKey) context.Context {
	return context.WithValue(ctx, contextKey{}, k)
}

const (
	failureRate  = rate.Limit(10.0 / 60.0) // ten failures a minute
	failureBurst = 10
	limiterTTL   = 10 * time.Minute
)

// failureLimiter tracks failed key attempts per client IP.
type failureLimiter struct {
	mu      sync.Mutex
	clients map[string]*failureClient
	now     func() time.Time
}

type failureClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newFailureLimiter() *failureLimiter {
	return &failureLimiter{clients: make(map[string]*failureClient), now: time.Now}
}

func (fl *failureLimiter) get(ip string) *rate.Limiter {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	now := fl.now()
	for k, c := range fl.clients {
		if now.Sub(c.lastSeen) > limiterTTL {
			delete(fl.clients, k)
		}
	}

	c, ok := fl.clients[ip]
	if !ok {
		c = &failureClient{limiter: rate.NewLimiter(failureRate, failureBurst)}
		fl.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// blocked reports whether ip has used up its failure budget.
func (fl *failureLimiter) blocked(ip string) bool {
	return fl.get(ip).Tokens() < 1
}

func (fl *failureLimiter) fail(ip string) {
	fl.get(ip).Allow()
}

// RequireAPIKey is middleware that validates Bearer token auth. The matched
// key is stored in the request context. Returns 401 for missing or invalid
// keys and 429 once a client has failed too often.
func RequireAPIKey(keys *APIKeyStore, next http.Handler) http.Handler {
	limiter := newFailureLimiter()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if limiter.blocked(ip) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			limiter.fail(ip)
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		k, err := keys.Validate(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if errors.Is(err, ErrInvalidKey) {
			limiter.fail(ip)
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		if err != nil {
			slog.Error("validating api key", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithKey(r.Context(), k)))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
