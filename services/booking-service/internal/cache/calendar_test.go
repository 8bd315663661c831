package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

func TestEntryKeyIncludesVersionAndToday(t *testing.T) {
	c := NewCalendarCache(nil, 0)
	if c.ttl != defaultTTL {
		t.Fatalf("expected default ttl, got %s", c.ttl)
	}
	k := CalendarKey{StaffID: "staff-1", Version: 3, Today: "2026-01-26", Start: "2026-01-26", Days: 60}

	if got := c.entryKey(k); got != "calendar:staff-1:v3:2026-01-26:2026-01-26:60" {
		t.Fatalf("unexpected key %q", got)
	}
	bumped := k
	bumped.Version = 4
	if c.entryKey(k) == c.entryKey(bumped) {
		t.Fatal("version bump must change the key")
	}
	if got := c.versionKey("staff-1"); got != "calendar:version:staff-1" {
		t.Fatalf("unexpected version key %q", got)
	}
}

func TestDecodeMarks(t *testing.T) {
	marks, err := decodeMarks([]byte(`{"2026-01-26":"available","2026-01-25":"unavailable","2026-01-27":"leave"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if marks["2026-01-27"] != availability.StatusLeave || marks["2026-01-26"] != availability.StatusAvailable {
		t.Fatalf("unexpected marks: %v", marks)
	}
	if _, err := decodeMarks([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGetSurfacesRedisErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	c := NewCalendarCache(rdb, time.Minute)
	if _, ok, err := c.Get(context.Background(), CalendarKey{StaffID: "s"}); err == nil || ok {
		t.Fatalf("expected error from unreachable redis, got ok=%v err=%v", ok, err)
	}
}

// memoryRedis implements the few redis.Cmdable calls the cache makes.
type memoryRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}}
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func TestSetAfterInvalidateIsNotServed(t *testing.T) {
	ctx := context.Background()
	c := NewCalendarCache(newMemoryRedis(), time.Minute)

	// A reader takes the version and loads staff data before a leave is written.
	before, err := c.Version(ctx, "s1")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	key := CalendarKey{StaffID: "s1", Version: before, Today: "2026-10-19", Start: "2026-10-19", Days: 7}
	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	// The leave commits and invalidates before the reader stores its marks.
	if err := c.Invalidate(ctx, "s1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	stale := map[string]availability.DateStatus{"2026-10-20": availability.StatusAvailable}
	if err := c.Set(ctx, key, stale); err != nil {
		t.Fatalf("set: %v", err)
	}

	after, err := c.Version(ctx, "s1")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if after == before {
		t.Fatal("invalidate must bump the version")
	}
	next := key
	next.Version = after
	if marks, hit, err := c.Get(ctx, next); err != nil || hit {
		t.Fatalf("stale marks served after invalidation: hit=%v marks=%v err=%v", hit, marks, err)
	}

	fresh := map[string]availability.DateStatus{"2026-10-20": availability.StatusLeave}
	if err := c.Set(ctx, next, fresh); err != nil {
		t.Fatalf("set: %v", err)
	}
	marks, hit, err := c.Get(ctx, next)
	if err != nil || !hit || marks["2026-10-20"] != availability.StatusLeave {
		t.Fatalf("expected fresh marks, got hit=%v marks=%v err=%v", hit, marks, err)
	}
}
