package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	max time.Time
	err error
}

func (f *fakeChecker) MaxReadingTime(ctx context.Context, sensorIDs []string) (time.Time, error) {
	return f.max, f.err
}

func TestBoundedQueryNeverChecksFreshness(t *testing.T) {
	checker := &fakeChecker{max: time.Now()}
	c := New(checker, 1024*1024, time.Minute)

	key := Key("readings", "station-1", "2026-01-01", "2026-01-02")
	cachedMax := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Store(key, []byte("payload"), cachedMax)

	data, hit := c.Get(context.Background(), key, []string{"s1"}, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.True(t, hit)
	assert.Equal(t, []byte("payload"), data)
}

func TestUnboundedQueryInvalidatesWhenStale(t *testing.T) {
	cachedMax := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	checker := &fakeChecker{max: cachedMax.Add(10 * time.Minute)}
	c := New(checker, 1024*1024, time.Minute)

	key := Key("readings", "station-1", "", "")
	c.Store(key, []byte("payload"), cachedMax)

	_, hit := c.Get(context.Background(), key, []string{"s1"}, time.Time{})
	assert.False(t, hit)

	// the entry must have been evicted, not just reported stale
	_, hitAgain := c.Get(context.Background(), key, []string{"s1"}, time.Time{})
	assert.False(t, hitAgain)
}

func TestUnboundedQueryHitsWhenNotStale(t *testing.T) {
	cachedMax := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	checker := &fakeChecker{max: cachedMax}
	c := New(checker, 1024*1024, time.Minute)

	key := Key("readings", "station-1", "", "")
	c.Store(key, []byte("payload"), cachedMax)

	data, hit := c.Get(context.Background(), key, []string{"s1"}, time.Time{})
	assert.True(t, hit)
	assert.Equal(t, []byte("payload"), data)
}

func TestInvalidatePrefix(t *testing.T) {
	checker := &fakeChecker{}
	c := New(checker, 1024*1024, time.Minute)

	c.Store(Key("readings", "station-1"), []byte("a"), time.Time{})
	c.Store(Key("readings", "station-2"), []byte("b"), time.Time{})
	c.Store(Key("aggregates", "station-1"), []byte("c"), time.Time{})

	c.InvalidatePrefix("readings")

	_, hit1 := c.Get(context.Background(), Key("readings", "station-1"), nil, time.Now())
	_, hit2 := c.Get(context.Background(), Key("readings", "station-2"), nil, time.Now())
	_, hit3 := c.Get(context.Background(), Key("aggregates", "station-1"), nil, time.Now())

	assert.False(t, hit1)
	assert.False(t, hit2)
	assert.True(t, hit3)
}

func TestKeyPreservesEmptyComponents(t *testing.T) {
	assert.Equal(t, "readings::end", Key("readings", "", "end"))
	assert.NotEqual(t, Key("readings", "a"), Key("readings", "a", ""))
}
