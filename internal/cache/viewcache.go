package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ViewCache stores one JSON projection of type T per id. The key scheme is
// fixed at construction: every entry lives under prefix+id, so callers deal
// in domain ids and never assemble Redis keys themselves.
type ViewCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewViewCache binds a cache to a key prefix. Pass ttl 0 for entries that
// live until explicitly deleted.
func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the entry for id. (nil, false) on a miss or a decode error; a
// corrupt entry reads as a miss and gets overwritten on the next Set.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.prefix+id).Result()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, false
	}
	return &v, true
}

// Set stores the entry for id. Errors are logged rather than returned; a
// failed cache write is non-fatal because the write store stays authoritative.
func (c *ViewCache[T]) Set(ctx context.Context, id string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("ViewCache: marshal error for %s%s: %v", c.prefix, id, err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+id, data, c.ttl).Err(); err != nil {
		log.Printf("ViewCache: write error for %s%s: %v", c.prefix, id, err)
	}
}

// Delete removes the entry for id.
func (c *ViewCache[T]) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.prefix+id).Err(); err != nil {
		log.Printf("ViewCache: delete error for %s%s: %v", c.prefix, id, err)
	}
}

// Markers is a set of expiring boolean flags under a shared prefix, used for
// the processed-transfer markers that make transfer replays no-ops.
type Markers struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewMarkers(client *goredis.Client, prefix string, ttl time.Duration) *Markers {
	return &Markers{client: client, prefix: prefix, ttl: ttl}
}

// Has reports whether id is marked. A Redis error reads as unmarked; the
// caller's operation must be safe to repeat.
func (m *Markers) Has(ctx context.Context, id string) bool {
	val, err := m.client.Exists(ctx, m.prefix+id).Result()
	return err == nil && val > 0
}

// Mark sets the flag for id with the configured TTL.
func (m *Markers) Mark(ctx context.Context, id string) {
	if err := m.client.Set(ctx, m.prefix+id, "1", m.ttl).Err(); err != nil {
		log.Printf("Markers: write error for %s%s: %v", m.prefix, id, err)
	}
}
