package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibills/backoffice/internal/core/domain"
)

const (
	claimsKeyPrefix = "claims:"
	tokenKeyPrefix  = "token:"
)

// RedisClaimsCache holds the last-seen claims per identity and the set of
// active token ids. Losing a key only forces a round-trip to the provider,
// so every value carries a TTL.
type RedisClaimsCache struct {
	client *redis.Client
}

func NewRedisClaimsCache(client *redis.Client) *RedisClaimsCache {
	return &RedisClaimsCache{client: client}
}

func (r *RedisClaimsCache) GetClaims(ctx context.Context, identity string) (domain.Claims, bool, error) {
	val, err := r.client.Get(ctx, claimsKeyPrefix+identity).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Claims{}, false, nil
	}
	if err != nil {
		return domain.Claims{}, false, err
	}

	var claims domain.Claims
	if err := json.Unmarshal([]byte(val), &claims); err != nil {
		return domain.Claims{}, false, err
	}
	return claims, true, nil
}

func (r *RedisClaimsCache) SetClaims(ctx context.Context, identity string, claims domain.Claims, ttl time.Duration) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, claimsKeyPrefix+identity, raw, ttl).Err()
}

func (r *RedisClaimsCache) InvalidateClaims(ctx context.Context, identity string) error {
	return r.client.Del(ctx, claimsKeyPrefix+identity).Err()
}

func (r *RedisClaimsCache) PutToken(ctx context.Context, tokenID, identity string, ttl time.Duration) error {
	return r.client.Set(ctx, tokenKeyPrefix+tokenID, identity, ttl).Err()
}

func (r *RedisClaimsCache) TokenIdentity(ctx context.Context, tokenID string) (string, bool, error) {
	val, err := r.client.Get(ctx, tokenKeyPrefix+tokenID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisClaimsCache) RevokeToken(ctx context.Context, tokenID string) error {
	return r.client.Del(ctx, tokenKeyPrefix+tokenID).Err()
}
