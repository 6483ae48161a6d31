package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers external webhook event ids for a window so at-least-once
// deliveries can be dropped before they reach the reconciler. Losing the
// cache is safe: the reconciler treats a re-applied transition as a no-op,
// this is just the cheap first line.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(addr, password string, db int) (*Deduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return &Deduper{client: client, ttl: 24 * time.Hour}, nil
}

// Seen records the event id and reports whether it was already present.
// Errors are returned so the caller can decide to process anyway.
func (d *Deduper) Seen(ctx context.Context, source, eventID string) (bool, error) {
	key := fmt.Sprintf("webhook:event:%s:%s", source, eventID)

	set, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return !set, nil
}

func (d *Deduper) Close() error {
	return d.client.Close()
}
