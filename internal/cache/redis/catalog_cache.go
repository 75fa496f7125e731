package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmarchant/polyscout/internal/domain"
)

// catalogKey holds the most recent discovery snapshot.
const catalogKey = "polyscout:catalog:latest"

// catalogTTL bounds how long a stale snapshot survives a dead discovery loop.
const catalogTTL = 24 * time.Hour

// CatalogCache implements domain.CatalogCache on a single Redis key. The
// discovery cycle overwrites it each pass; dashboards and ad-hoc tooling read
// it without a database round-trip.
type CatalogCache struct {
	rdb *redis.Client
}

// NewCatalogCache creates a CatalogCache backed by the given Client.
func NewCatalogCache(c *Client) *CatalogCache {
	return &CatalogCache{rdb: c.Underlying()}
}

// SetLatest replaces the cached snapshot.
func (cc *CatalogCache) SetLatest(ctx context.Context, payload []byte) error {
	if err := cc.rdb.Set(ctx, catalogKey, payload, catalogTTL).Err(); err != nil {
		return fmt.Errorf("redis: set catalog snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the cached snapshot, or domain.ErrNotFound when no cycle
// has published one yet.
func (cc *CatalogCache) GetLatest(ctx context.Context) ([]byte, error) {
	payload, err := cc.rdb.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: catalog snapshot: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get catalog snapshot: %w", err)
	}
	return payload, nil
}

var _ domain.CatalogCache = (*CatalogCache)(nil)
