package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestRistrettoCache(t *testing.T) *ristrettoCache {
	t.Helper()
	cfg := RistrettoConfig{
		NumCounters: 100_000,
		MaxCost:     10 << 20, // 10 MB
		BufferItems: 64,
	}
	c, err := newRistrettoCache(cfg)
	if err != nil {
		t.Fatalf("failed to create ristretto cache: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func TestRistrettoCache_GetSet(t *testing.T) {
	c := newTestRistrettoCache(t)
	ctx := context.Background()

	key := "test-key"
	value := []byte("test-value")

	if err := c.SetWithTTL(ctx, key, value, time.Minute); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	// Wait for async set to complete
	c.cache.Wait()

	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	_, err = c.Get(ctx, "nonexistent-key")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get nonexistent key returned %v, want ErrNotFound", err)
	}
}

func TestRistrettoCache_TTLExpires(t *testing.T) {
	c := newTestRistrettoCache(t)
	ctx := context.Background()

	if err := c.SetWithTTL(ctx, "ttl-key", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}
	c.cache.Wait()

	if _, err := c.Get(ctx, "ttl-key"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	if _, err := c.Get(ctx, "ttl-key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry returned %v, want ErrNotFound", err)
	}
}

func TestRistrettoCache_GetCopiesValue(t *testing.T) {
	c := newTestRistrettoCache(t)
	ctx := context.Background()

	if err := c.SetWithTTL(ctx, "k", []byte("original"), time.Minute); err != nil {
		t.Fatal(err)
	}
	c.cache.Wait()

	first, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	first[0] = 'X'

	second, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != "original" {
		t.Errorf("cached value mutated through returned slice: %q", second)
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestRistrettoCache(t)
	ctx := context.Background()

	if err := c.SetWithTTL(ctx, "del-key", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	c.cache.Wait()

	if err := c.Delete(ctx, "del-key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "del-key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete returned %v, want ErrNotFound", err)
	}

	// Deleting a missing key is idempotent.
	if err := c.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete missing key returned %v, want nil", err)
	}
}

func TestRistrettoCache_Closed(t *testing.T) {
	c := newTestRistrettoCache(t)
	ctx := context.Background()

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get on closed cache returned %v, want ErrClosed", err)
	}
	if err := c.SetWithTTL(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, ErrClosed) {
		t.Errorf("SetWithTTL on closed cache returned %v, want ErrClosed", err)
	}
	if err := c.Delete(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Delete on closed cache returned %v, want ErrClosed", err)
	}
}

func TestRistrettoCache_CanceledContext(t *testing.T) {
	c := newTestRistrettoCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get returned %v, want context.Canceled", err)
	}
	if err := c.SetWithTTL(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("SetWithTTL returned %v, want context.Canceled", err)
	}
}

func TestRistrettoCache_Stats(t *testing.T) {
	c := newTestRistrettoCache(t)
	ctx := context.Background()

	if err := c.SetWithTTL(ctx, "stats-key", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	c.cache.Wait()

	_, _ = c.Get(ctx, "stats-key")
	_, _ = c.Get(ctx, "missing-key")

	stats := c.Stats()
	if stats.Hits == 0 {
		t.Error("Stats().Hits = 0, want > 0")
	}
	if stats.Misses == 0 {
		t.Error("Stats().Misses = 0, want > 0")
	}
}

func TestRistrettoCache_ConcurrentAccess(t *testing.T) {
	c := newTestRistrettoCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			for j := 0; j < 50; j++ {
				_ = c.SetWithTTL(ctx, key, []byte("value"), time.Minute)
				_, _ = c.Get(ctx, key)
				_ = c.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}
