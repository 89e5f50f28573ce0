package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "exclusions:snapshot"

// snapshot is the wire form of a Directive. Sets are stored as sorted slices
// so the cached copy renders identically to a freshly built one.
type snapshot struct {
	Categories []string `json:"categories"`
	Titles     []string `json:"titles"`
	Rendered   string   `json:"rendered"`
}

// SnapshotCache keeps the most recent exclusion directive in Redis so a
// retriggered run can skip the full history scan. It is strictly an
// optimization: every failure degrades to a miss and the directive is rebuilt
// from Postgres.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache wraps a redis client. A nil client yields a cache that
// always misses.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached directive, if any.
func (c *SnapshotCache) Get(ctx context.Context) (Directive, bool) {
	if c == nil || c.client == nil {
		return Directive{}, false
	}
	// Both a missing key and a transport error degrade to a miss.
	val, err := c.client.Get(ctx, snapshotKey).Result()
	if err != nil {
		return Directive{}, false
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return Directive{}, false
	}
	d := Directive{
		ExcludedCategories: make(map[string]struct{}, len(snap.Categories)),
		ExcludedTitles:     make(map[string]struct{}, len(snap.Titles)),
		RenderedPrompt:     snap.Rendered,
	}
	for _, cat := range snap.Categories {
		d.ExcludedCategories[cat] = struct{}{}
	}
	for _, title := range snap.Titles {
		d.ExcludedTitles[title] = struct{}{}
	}
	return d, true
}

// Put stores a directive snapshot with the configured TTL.
func (c *SnapshotCache) Put(ctx context.Context, d Directive) {
	if c == nil || c.client == nil {
		return
	}
	snap := snapshot{
		Categories: sortedKeys(d.ExcludedCategories),
		Titles:     sortedKeys(d.ExcludedTitles),
		Rendered:   d.RenderedPrompt,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, snapshotKey, data, c.ttl).Err()
}

// Invalidate drops the snapshot. Called after a new topic record is persisted
// so the next run sees it.
func (c *SnapshotCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, snapshotKey).Err()
}
