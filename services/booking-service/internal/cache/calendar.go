// Package cache stores computed calendar marks in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

// CalendarCache keys entries by a per-staff version counter. Invalidate bumps the
// counter, orphaning every older entry until its TTL expires.
//
// Readers take the version with Version before loading staff data and carry it in
// the CalendarKey. Marks computed from data that an Invalidate raced with are then
// written under the old version and never served.
type CalendarCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewCalendarCache(rdb redis.Cmdable, ttl time.Duration) *CalendarCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CalendarCache{rdb: rdb, ttl: ttl, prefix: "calendar"}
}

// CalendarKey identifies one computed calendar. Today is part of the key because
// marks for past dates change as the shop-local day rolls over.
type CalendarKey struct {
	StaffID string
	// Version is the value Version returned before the staff data was read.
	Version int64
	Today   string
	Start   string
	Days    int
}

// Version returns the staff member's current cache version.
func (c *CalendarCache) Version(ctx context.Context, staffID string) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey(staffID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *CalendarCache) Get(ctx context.Context, key CalendarKey) (map[string]availability.DateStatus, bool, error) {
	raw, err := c.rdb.Get(ctx, c.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	marks, err := decodeMarks(raw)
	if err != nil {
		return nil, false, err
	}
	return marks, true, nil
}

// Set stores marks under key.Version, not the current version.
func (c *CalendarCache) Set(ctx context.Context, key CalendarKey, marks map[string]availability.DateStatus) error {
	raw, err := json.Marshal(marks)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.entryKey(key), raw, c.ttl).Err()
}

func (c *CalendarCache) Invalidate(ctx context.Context, staffID string) error {
	return c.rdb.Incr(ctx, c.versionKey(staffID)).Err()
}

func (c *CalendarCache) versionKey(staffID string) string {
	return fmt.Sprintf("%s:version:%s", c.prefix, staffID)
}

func (c *CalendarCache) entryKey(k CalendarKey) string {
	return fmt.Sprintf("%s:%s:v%d:%s:%s:%d", c.prefix, k.StaffID, k.Version, k.Today, k.Start, k.Days)
}

func decodeMarks(raw []byte) (map[string]availability.DateStatus, error) {
	var marks map[string]availability.DateStatus
	if err := json.Unmarshal(raw, &marks); err != nil {
		return nil, fmt.Errorf("decode cached calendar: %w", err)
	}
	return marks, nil
}

// ReadyCheck pings Redis.
func ReadyCheck(rdb redis.Cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
