package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"pigeon/internal/config"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg *config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Url,
		Password: cfg.Password,
		DB:       cfg.Db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logrus.WithField("addr", cfg.Url).Info("Connected to Redis")
	return client, nil
}

// Presence is the cached copy of a user's durable presence mirror.
type Presence struct {
	UserID         string     `json:"userId"`
	Status         string     `json:"status"`
	LastConnection *time.Time `json:"lastConnection,omitempty"`
}

// PresenceCache keeps a TTL'd copy of presence transitions so REST status
// reads do not hit the store. The store remains the source of truth; a cache
// miss is not an error.
type PresenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceCache(client *redis.Client, cfg *config.Redis) *PresenceCache {
	return &PresenceCache{
		client: client,
		ttl:    time.Duration(cfg.PresenceTTLMinutes) * time.Minute,
	}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

func (c *PresenceCache) Set(ctx context.Context, p *Presence) error {
	data, err := json.Marshal(p)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal presence for cache")
		return err
	}
	if err := c.client.Set(ctx, presenceKey(p.UserID), data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("user_id", p.UserID).Error("Failed to cache presence")
		return err
	}
	return nil
}

func (c *PresenceCache) Get(ctx context.Context, userID string) (*Presence, error) {
	data, err := c.client.Get(ctx, presenceKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // not cached, not an error
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to get presence from cache")
		return nil, err
	}

	var p Presence
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to unmarshal cached presence")
		return nil, err
	}
	return &p, nil
}
