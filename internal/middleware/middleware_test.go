package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func ownerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, _ := OwnerIDFromContext(r.Context())
		_, _ = w.Write([]byte(owner))
	})
}

func sessionStore(tokens map[string]string) SessionValidator {
	return func(_ context.Context, token string) (string, bool, error) {
		if token == "broken" {
			return "", false, errors.New("redis down")
		}
		owner, ok := tokens[token]
		return owner, ok, nil
	}
}

func TestAuthenticatorRequire(t *testing.T) {
	auth := NewAuthenticator(testSecret, sessionStore(map[string]string{"sess-1": "session-user"}))
	h := auth.Require(ownerEcho())

	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name   string
		header string
		query  string
		ws     bool
		status int
		owner  string
	}{
		{name: "userId claim", header: "Bearer " + signToken(t, jwt.MapClaims{"userId": "u1", "sub": "ignored", "exp": exp}, jwt.SigningMethodHS256, []byte(testSecret)), status: 200, owner: "u1"},
		{name: "sub fallback", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "u2", "exp": exp}, jwt.SigningMethodHS256, []byte(testSecret)), status: 200, owner: "u2"},
		{name: "lowercase scheme", header: "bearer " + signToken(t, jwt.MapClaims{"sub": "u3"}, jwt.SigningMethodHS256, []byte(testSecret)), status: 200, owner: "u3"},
		{name: "session token", header: "Bearer sess-1", status: 200, owner: "session-user"},
		{name: "missing", status: 401},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "u"}, jwt.SigningMethodHS256, []byte("other")), status: 401},
		{name: "expired", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(testSecret)), status: 401},
		{name: "wrong algorithm", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "u"}, jwt.SigningMethodHS512, []byte(testSecret)), status: 401},
		{name: "no user claim", header: "Bearer " + signToken(t, jwt.MapClaims{"role": "x"}, jwt.SigningMethodHS256, []byte(testSecret)), status: 401},
		{name: "unknown session", header: "Bearer nope", status: 401},
		{name: "session backend error", header: "Bearer broken", status: 401},
		{name: "query token ignored for plain requests", query: "sess-1", status: 401},
		{name: "query token on websocket upgrade", query: "sess-1", ws: true, status: 200, owner: "session-user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/journals"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.ws {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.owner, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestAuthenticatorDisabledSchemes(t *testing.T) {
	auth := NewAuthenticator("", nil)

	_, err := auth.Resolve(context.Background(), "a.b.c")
	assert.ErrorIs(t, err, errInvalidToken)
	_, err = auth.Resolve(context.Background(), "opaque")
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/journals", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	req = httptest.NewRequest(http.MethodGet, "/api/journals", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func newLimiter(t *testing.T, limit int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, limit), mr
}

func TestRedisRateLimiterBlocksAfterLimit(t *testing.T) {
	limiter, mr := newLimiter(t, 3)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/journals", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		rec := do()
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "retry_after")
	assert.True(t, mr.Exists(BlockedIPKeyPrefix+"203.0.113.9"))

	mr.FastForward(RateLimitWindow + time.Second)
	assert.Equal(t, http.StatusTooManyRequests, do().Code, "still blocked after the window resets")

	require.NoError(t, limiter.Unblock(context.Background(), "203.0.113.9"))
	assert.Equal(t, http.StatusOK, do().Code)
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	mr.SetError("LOADING")
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get(headerXContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(headerXFrameOptions))
}

func TestMutationLimiterOnlyLimitsWrites(t *testing.T) {
	m := NewMutationLimiter()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := map[int]int{}
	for i := 0; i < mutationRateLimitBurst+3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/journals", nil))
		codes[rec.Code]++
	}
	assert.GreaterOrEqual(t, codes[http.StatusTooManyRequests], 2)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journals", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductionSecurityLimitsByIP(t *testing.T) {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	chain := ProductionSecurity(2)
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journals", nil))
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRequestIDAndLogger(t *testing.T) {
	var seen string
	h := RequestID(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/journals", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.NotEqual(t, "abc-123", seen)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, rec.Body.String())
}
