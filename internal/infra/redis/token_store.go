// Package redis provides Redis-backed infra adapters so multiple server
// instances can share session state.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore marks session token liveness in Redis. The TTL mirrors the
// token's own expiry so revocation records clean themselves up.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func (s *TokenStore) Mark(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.Set(ctx, s.key(tokenID), "1", ttl).Err()
}

func (s *TokenStore) Alive(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *TokenStore) Revoke(ctx context.Context, tokenID string) error {
	return s.client.Del(ctx, s.key(tokenID)).Err()
}

func (s *TokenStore) key(tokenID string) string {
	return "session:token:" + tokenID
}
