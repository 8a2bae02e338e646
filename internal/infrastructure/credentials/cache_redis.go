package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telecall/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "telecall:credential:"

// RedisCache is the consume-once credential cache shared between agent
// replicas. GETDEL makes the consume atomic: two racing joins can never
// both use the same seeded credential.
type RedisCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

func NewRedisCache(address, password string, db, poolSize int, logger *zap.SugaredLogger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infow("connected to Redis credential cache", "address", address, "db", db)

	return &RedisCache{client: client, logger: logger}, nil
}

func (r *RedisCache) Put(ctx context.Context, key string, cred domain.SessionCredential, ttl time.Duration) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	return r.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err()
}

func (r *RedisCache) Take(ctx context.Context, key string) (domain.SessionCredential, bool, error) {
	payload, err := r.client.GetDel(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return domain.SessionCredential{}, false, nil
	}
	if err != nil {
		return domain.SessionCredential{}, false, err
	}

	var cred domain.SessionCredential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return domain.SessionCredential{}, false, fmt.Errorf("decoding cached credential: %w", err)
	}
	return cred, true, nil
}

// Client exposes the underlying connection for health checks.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
