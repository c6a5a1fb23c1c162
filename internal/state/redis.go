package state

import (
	"context"
	"encoding/json"
	"fmt"

	"bjs/parser/internal/domain"

	"github.com/redis/go-redis/v9"
)

type redisResumeCache struct {
	redisClient  *redis.Client
	itemsKey     string
	completedKey string
}

func NewRedisResumeCache(redisClient *redis.Client, keyPrefix string) ResumeCache {
	return &redisResumeCache{
		redisClient:  redisClient,
		itemsKey:     keyPrefix + "items",
		completedKey: keyPrefix + "completed",
	}
}

func (s *redisResumeCache) Completed(ctx context.Context, path domain.Path) (bool, error) {
	ok, err := s.redisClient.SIsMember(ctx, s.completedKey, path.Key()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check completion of %s: %w", path, err)
	}
	return ok, nil
}

func (s *redisResumeCache) Items(ctx context.Context, path domain.Path) (map[string]domain.Item, bool, error) {
	val, err := s.redisClient.HGet(ctx, s.itemsKey, path.Key()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // Nothing cached for this path
		}
		return nil, false, fmt.Errorf("failed to get cached items for %s: %w", path, err)
	}

	items := make(map[string]domain.Item)
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached items for %s: %w", path, err)
	}
	return items, true, nil
}

func (s *redisResumeCache) PutItems(ctx context.Context, path domain.Path, items map[string]domain.Item) error {
	val, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode items for %s: %w", path, err)
	}
	if err := s.redisClient.HSet(ctx, s.itemsKey, path.Key(), val).Err(); err != nil {
		return fmt.Errorf("failed to cache items for %s: %w", path, err)
	}
	return nil
}

func (s *redisResumeCache) RollUp(ctx context.Context, path domain.Path, items map[string]domain.Item) error {
	keys, err := s.redisClient.HKeys(ctx, s.itemsKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list cached paths: %w", err)
	}

	var children []string
	for _, key := range keys {
		if isDirectChild(key, path) {
			children = append(children, key)
		}
	}

	val, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode items for %s: %w", path, err)
	}

	pipe := s.redisClient.TxPipeline()
	if len(children) > 0 {
		pipe.HDel(ctx, s.itemsKey, children...)
	}
	pipe.HSet(ctx, s.itemsKey, path.Key(), val)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to roll up items for %s: %w", path, err)
	}
	return nil
}

func (s *redisResumeCache) MarkCompleted(ctx context.Context, path domain.Path) error {
	if err := s.redisClient.SAdd(ctx, s.completedKey, path.Key()).Err(); err != nil {
		return fmt.Errorf("failed to mark %s completed: %w", path, err)
	}
	return nil
}
