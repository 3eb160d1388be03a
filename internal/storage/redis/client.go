// Package redis хранит web-push подписки пользователей: список push:subs:{userId}.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pawsafe/internal/push"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix       = "push:subs:"
	MaxSubsPerUser  = 10
	SubscriptionTTL = 30 * 24 * time.Hour
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// NewFromClient оборачивает готовый клиент (тесты, общий пул).
func NewFromClient(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Add сохраняет подписку: повтор с тем же endpoint заменяет старую, хранятся последние MaxSubsPerUser, TTL продлевается.
func (c *Client) Add(ctx context.Context, userID string, sub push.PushSubscription) error {
	if err := c.Remove(ctx, userID, sub.Endpoint); err != nil {
		return err
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("redis subscription encode: %w", err)
	}
	key := keyPrefix + userID
	pipe := c.cli.TxPipeline()
	pipe.RPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, -MaxSubsPerUser, -1)
	pipe.Expire(ctx, key, SubscriptionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	return nil
}

// List возвращает подписки пользователя; битые записи пропускаются.
func (c *Client) List(ctx context.Context, userID string) ([]push.PushSubscription, error) {
	items, err := c.cli.LRange(ctx, keyPrefix+userID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis subscriptions: %w", err)
	}
	subs := make([]push.PushSubscription, 0, len(items))
	for _, item := range items {
		var sub push.PushSubscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != "" {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// Remove удаляет подписки с данным endpoint. LREM по точному значению не трогает параллельные добавления.
func (c *Client) Remove(ctx context.Context, userID, endpoint string) error {
	key := keyPrefix + userID
	items, err := c.cli.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis subscriptions: %w", err)
	}
	for _, item := range items {
		var sub push.PushSubscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != endpoint {
			continue
		}
		if err := c.cli.LRem(ctx, key, 0, item).Err(); err != nil {
			return fmt.Errorf("redis unsubscribe: %w", err)
		}
	}
	return nil
}
