package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const ReconciliationKey = "ledger:reconcile"

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisReconciliationQueue stores failed releases in a Redis list so they
// survive a restart. Entries are pushed on the left and popped on the right.
type RedisReconciliationQueue struct {
	client *redis.Client
	key    string
}

func NewRedisReconciliationQueue(client *redis.Client, key string) *RedisReconciliationQueue {
	if key == "" {
		key = ReconciliationKey
	}
	return &RedisReconciliationQueue{client: client, key: key}
}

func (q *RedisReconciliationQueue) Push(ctx context.Context, entry ReconciliationEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

func (q *RedisReconciliationQueue) Pop(ctx context.Context) (*ReconciliationEntry, error) {
	data, err := q.client.RPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry ReconciliationEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode reconciliation entry: %w", err)
	}
	return &entry, nil
}

func (q *RedisReconciliationQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
