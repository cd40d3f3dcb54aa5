package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/database"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

// CreateSession issues an opaque token for userID, replacing any session the
// user already had.
func CreateSession(ctx context.Context, userID string) (string, error) {
	if database.RedisClient == nil {
		return "", errRedisUnavailable
	}
	if err := InvalidateUserSessions(ctx, userID); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	sessionToken := base64.URLEncoding.EncodeToString(tokenBytes)

	pipe := database.RedisClient.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+sessionToken, userID, SessionDuration)
	pipe.Set(ctx, UserSessionKeyPrefix+userID, sessionToken, SessionDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return sessionToken, nil
}

// ValidateSession returns the user id bound to sessionToken. Unknown or
// expired tokens report ok=false with a nil error.
func ValidateSession(ctx context.Context, sessionToken string) (string, bool, error) {
	if sessionToken == "" {
		return "", false, nil
	}
	if database.RedisClient == nil {
		return "", false, errRedisUnavailable
	}

	userID, err := database.RedisClient.Get(ctx, SessionKeyPrefix+sessionToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", false, nil
	}
	return userID, true, nil
}

// InvalidateUserSessions drops the current session of userID, if any.
func InvalidateUserSessions(ctx context.Context, userID string) error {
	if database.RedisClient == nil {
		return errRedisUnavailable
	}
	userSessionKey := UserSessionKeyPrefix + userID

	sessionToken, err := database.RedisClient.Get(ctx, userSessionKey).Result()
	if err == nil && sessionToken != "" {
		database.RedisClient.Del(ctx, SessionKeyPrefix+sessionToken)
	}

	return database.RedisClient.Del(ctx, userSessionKey).Err()
}
