package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator claims one-shot work (receipt emails) across consumer replicas.
type Deduplicator struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewDeduplicator(client redis.UniversalClient, prefix string, ttl time.Duration) *Deduplicator {
	return &Deduplicator{client: client, prefix: prefix, ttl: ttl}
}

// Claim reports whether the caller is the first to claim id within the TTL.
func (d *Deduplicator) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(id), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Release drops a claim so the work can be retried after a failure.
func (d *Deduplicator) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, d.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (d *Deduplicator) key(id string) string {
	return d.prefix + ":" + id
}
