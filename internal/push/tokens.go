package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps device-registration tokens in a Redis set per
// identity. The mobile backend writes the same keys when devices register.
type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func tokenKey(identityID string) string {
	return fmt.Sprintf("push:tokens:%s", identityID)
}

func (s *RedisTokenStore) Tokens(ctx context.Context, identityID string) ([]string, error) {
	return s.rdb.SMembers(ctx, tokenKey(identityID)).Result()
}

func (s *RedisTokenStore) AddToken(ctx context.Context, identityID, token string) error {
	return s.rdb.SAdd(ctx, tokenKey(identityID), token).Err()
}

func (s *RedisTokenStore) RemoveToken(ctx context.Context, identityID, token string) error {
	return s.rdb.SRem(ctx, tokenKey(identityID), token).Err()
}
