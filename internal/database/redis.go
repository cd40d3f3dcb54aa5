package database

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// ConnectRedis connects to Redis database
func ConnectRedis(redisURI string) error {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		return err
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 5
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}

	RedisClient = client
	logging.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("Connected to Redis")
	return nil
}

var errRedisNotConnected = errors.New("redis not connected")

// PingRedis backs the redis health check.
func PingRedis(ctx context.Context) error {
	if RedisClient == nil {
		return errRedisNotConnected
	}
	return RedisClient.Ping(ctx).Err()
}

func DisconnectRedis() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}
