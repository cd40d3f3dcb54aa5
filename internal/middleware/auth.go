package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/services"
	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

type ownerKey struct{}

// OwnerIDFromContext returns the authenticated owner set by Authenticator.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}

// WithOwnerID is used by tests and by Authenticator.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// SessionValidator resolves an opaque session token to an owner id.
type SessionValidator func(ctx context.Context, token string) (string, bool, error)

// Authenticator resolves the caller from a bearer token: an HS256 JWT whose
// userId (or sub) claim is the owner, or a Redis session token.
type Authenticator struct {
	secret   []byte
	sessions SessionValidator
}

// NewAuthenticator returns an authenticator. Either argument may be empty to
// disable that scheme.
func NewAuthenticator(jwtSecret string, sessions SessionValidator) *Authenticator {
	a := &Authenticator{sessions: sessions}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	return a
}

// Require rejects requests without a valid token with 401.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ownerID, err := a.Resolve(r.Context(), token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("authentication failed")
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := WithOwnerID(r.Context(), ownerID)
		ctx = services.WithBearerToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve returns the owner id for token.
func (a *Authenticator) Resolve(ctx context.Context, token string) (string, error) {
	if strings.Count(token, ".") == 2 {
		if a.secret == nil {
			return "", fmt.Errorf("%w: JWT authentication is not configured", errInvalidToken)
		}
		return a.parseJWT(token)
	}

	if a.sessions == nil {
		return "", fmt.Errorf("%w: session authentication is disabled", errInvalidToken)
	}
	ownerID, ok, err := a.sessions(ctx, token)
	if err != nil {
		return "", fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: unknown session", errInvalidToken)
	}
	return ownerID, nil
}

func (a *Authenticator) parseJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims", errInvalidToken)
	}
	if id, ok := claims["userId"].(string); ok && strings.TrimSpace(id) != "" {
		return id, nil
	}
	if sub, err := claims.GetSubject(); err == nil && strings.TrimSpace(sub) != "" {
		return sub, nil
	}
	return "", fmt.Errorf("%w: no user claim", errInvalidToken)
}

// ExtractToken reads the bearer token from the Authorization header. Browser
// WebSocket clients cannot set headers, so upgrade requests may pass
// ?token= instead.
func ExtractToken(r *http.Request) string {
	if token := extractBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
