package shift

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gasflow/store"
)

// Cache holds recently resolved work windows in Redis. Window lookups sit on
// the token-request hot path; the TTL keeps staleness bounded to seconds.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func windowKey(driverID int64) string {
	return fmt.Sprintf("gasflow:driver:%d:window", driverID)
}

// cachedWindow distinguishes "no active window" (cached negative) from a miss.
type cachedWindow struct {
	None   bool              `json:"none"`
	Window *store.WorkWindow `json:"window,omitempty"`
}

func (c *Cache) Get(ctx context.Context, driverID int64) (*store.WorkWindow, bool) {
	data, err := c.client.Get(ctx, windowKey(driverID)).Bytes()
	if err != nil {
		return nil, false
	}
	var cw cachedWindow
	if json.Unmarshal(data, &cw) != nil {
		return nil, false
	}
	if cw.None {
		return nil, true
	}
	// A cached window may have ended since it was stored.
	if cw.Window == nil || !cw.Window.EndsAt.After(time.Now()) {
		return nil, false
	}
	return cw.Window, true
}

func (c *Cache) Put(ctx context.Context, driverID int64, w *store.WorkWindow) {
	cw := cachedWindow{None: w == nil, Window: w}
	data, err := json.Marshal(cw)
	if err != nil {
		return
	}
	c.client.Set(ctx, windowKey(driverID), data, c.ttl)
}

func (c *Cache) Invalidate(ctx context.Context, driverID int64) {
	c.client.Del(ctx, windowKey(driverID))
}
