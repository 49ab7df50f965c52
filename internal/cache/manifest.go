// Package cache holds Redis-backed read caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
)

const (
	manifestKeyPrefix = "tool:manifest:" // Serialized manifest by slug: tool:manifest:{slug}
	manifestTTL       = 10 * time.Minute
)

// ManifestCache stores rendered manifests of deployed projects by slug.
// Publish and undeploy invalidate; the TTL bounds staleness after edits to
// a live project's tree.
type ManifestCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewManifestCache(client *redis.Client) *ManifestCache {
	return &ManifestCache{client: client, ttl: manifestTTL}
}

func manifestKey(slug string) string { return manifestKeyPrefix + slug }

// Get returns (nil, nil) on a miss.
func (c *ManifestCache) Get(ctx context.Context, slug string) (*deploydomain.Manifest, error) {
	data, err := c.client.Get(ctx, manifestKey(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	var m deploydomain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

func (c *ManifestCache) Set(ctx context.Context, m *deploydomain.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := c.client.Set(ctx, manifestKey(m.Slug), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set manifest: %w", err)
	}
	return nil
}

func (c *ManifestCache) Invalidate(ctx context.Context, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, len(slugs))
	for i, s := range slugs {
		keys[i] = manifestKey(s)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate manifest: %w", err)
	}
	return nil
}
