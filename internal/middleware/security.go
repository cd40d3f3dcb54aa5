package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/pkg/clientip"
	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// --- Mutation rate limiting (per-IP, 1 req/s, burst 10) ---
//
// Creates and updates may each call the weather provider and the media
// service, so writes get a tighter per-instance budget than reads.

const (
	mutationRateLimitRPS   = 1
	mutationRateLimitBurst = 10
	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// MutationLimiter holds one token bucket per client IP.
type MutationLimiter struct {
	mu         sync.Mutex
	entries    map[string]*limiterEntry
	cleanupRun bool
	rps        rate.Limit
	burst      int
}

func NewMutationLimiter() *MutationLimiter {
	return &MutationLimiter{
		entries: make(map[string]*limiterEntry),
		rps:     rate.Limit(mutationRateLimitRPS),
		burst:   mutationRateLimitBurst,
	}
}

func (m *MutationLimiter) limiterFor(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCleanupOnce()
	e, ok := m.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(m.rps, m.burst)}
		m.entries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func (m *MutationLimiter) startCleanupOnce() {
	if m.cleanupRun {
		return
	}
	m.cleanupRun = true
	go func() {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			m.mu.Lock()
			now := time.Now()
			for ip, e := range m.entries {
				if now.Sub(e.lastUse) > limiterTTL {
					delete(m.entries, ip)
				}
			}
			m.mu.Unlock()
		}
	}()
}

// Middleware limits POST, PUT, PATCH and DELETE. Reads pass through.
func (m *MutationLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if !m.limiterFor(clientip.RealClientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many changes. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProductionSecurity returns the production chain: SecurityHeaders, then an
// in-memory per-IP limit of requestsPerMinute, then the mutation limiter.
func ProductionSecurity(requestsPerMinute int) []func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{SecurityHeaders}
	if requestsPerMinute > 0 {
		chain = append(chain, httprate.Limit(
			requestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			}),
		))
	}
	return append(chain, NewMutationLimiter().Middleware)
}
