// Package cache provides the optional cross-run cache for Slack user
// profiles, so a rolled-back channel batch does not force a second
// users.info call for the same author on the next run.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const profileTTL = 14 * 24 * time.Hour

// profileData is the JSON value stored per Slack user ID.
type profileData struct {
	Name     string    `json:"name"`
	CachedAt time.Time `json:"cached_at"`
}

// ProfileStore caches resolved display names in Redis.
type ProfileStore struct {
	client *redis.Client
	prefix string
}

// NewProfileStore connects to Redis and verifies the connection.
func NewProfileStore(redisURL string) (*ProfileStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &ProfileStore{client: client, prefix: "profile:"}, nil
}

// NewProfileStoreWithClient builds a store from an existing client.
func NewProfileStoreWithClient(client *redis.Client) *ProfileStore {
	return &ProfileStore{client: client, prefix: "profile:"}
}

func (s *ProfileStore) key(slackUserID string) string {
	return s.prefix + slackUserID
}

// GetName returns the cached display name, or "" on a miss.
func (s *ProfileStore) GetName(ctx context.Context, slackUserID string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(slackUserID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get profile %s: %w", slackUserID, err)
	}

	var data profileData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", fmt.Errorf("unmarshal profile %s: %w", slackUserID, err)
	}
	return data.Name, nil
}

// SetName caches a display name with a fixed TTL.
func (s *ProfileStore) SetName(ctx context.Context, slackUserID, name string) error {
	raw, err := json.Marshal(profileData{Name: name, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", slackUserID, err)
	}
	if err := s.client.Set(ctx, s.key(slackUserID), raw, profileTTL).Err(); err != nil {
		return fmt.Errorf("set profile %s: %w", slackUserID, err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *ProfileStore) Close() error {
	return s.client.Close()
}
