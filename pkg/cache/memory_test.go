package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

type record struct {
	ID string
}

func newTestCache(ttl time.Duration, maxSize int) *Memory[string, *record] {
	return NewMemory[string, *record](Config{TTL: ttl, MaxSize: maxSize})
}

func TestMemoryGetSetShouldStoreAndRetrieve(t *testing.T) {
	cache := newTestCache(5*time.Minute, 500)

	if err := cache.Set("prefix1", &record{ID: "cred-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := cache.Get("prefix1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "cred-1" {
		t.Errorf("Expected ID cred-1, got %s", got.ID)
	}
}

func TestMemoryGetMissingShouldReturnErrNotFound(t *testing.T) {
	cache := newTestCache(5*time.Minute, 500)

	if _, err := cache.Get("missing"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryExpiryShouldDropEntriesAfterTTL(t *testing.T) {
	cache := newTestCache(time.Minute, 500)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("prefix1", &record{ID: "cred-1"})
	if _, err := cache.Get("prefix1"); err != nil {
		t.Fatal("entry should exist immediately after Set")
	}

	now = now.Add(2 * time.Minute)

	if _, err := cache.Get("prefix1"); err != ErrNotFound {
		t.Errorf("entry should be expired, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry should be removed, size %d", cache.Len())
	}
}

func TestMemoryDeleteShouldRemoveEntry(t *testing.T) {
	cache := newTestCache(5*time.Minute, 500)
	cache.Set("prefix1", &record{ID: "cred-1"})

	if err := cache.Delete("prefix1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get("prefix1"); err != ErrNotFound {
		t.Error("entry should be deleted")
	}
	if err := cache.Delete("never-set"); err != nil {
		t.Errorf("Delete of missing key should not error, got %v", err)
	}
}

func TestMemoryClearShouldRemoveAllEntries(t *testing.T) {
	cache := newTestCache(5*time.Minute, 500)
	for i := 0; i < 3; i++ {
		cache.Set("p"+strconv.Itoa(i), &record{ID: strconv.Itoa(i)})
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("cache should be empty after Clear, got %d", cache.Len())
	}
}

func TestMemoryMaxSizeShouldEvictWhenFull(t *testing.T) {
	cache := newTestCache(5*time.Minute, 2)

	cache.Set("a", &record{ID: "a"})
	cache.Set("b", &record{ID: "b"})
	cache.Set("c", &record{ID: "c"})

	if cache.Len() != 2 {
		t.Errorf("expected size 2 after eviction, got %d", cache.Len())
	}
	if _, err := cache.Get("c"); err != nil {
		t.Error("newest entry should survive eviction")
	}
	if cache.Stats().Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", cache.Stats().Evictions)
	}
}

func TestMemoryOverwriteShouldNotEvict(t *testing.T) {
	cache := newTestCache(5*time.Minute, 2)

	cache.Set("a", &record{ID: "a1"})
	cache.Set("b", &record{ID: "b"})
	cache.Set("a", &record{ID: "a2"})

	got, err := cache.Get("a")
	if err != nil || got.ID != "a2" {
		t.Fatalf("expected overwritten value a2, got %v, %v", got, err)
	}
	if _, err := cache.Get("b"); err != nil {
		t.Error("overwrite should not evict other entries")
	}
}

func TestMemoryStatsShouldCountOperations(t *testing.T) {
	cache := newTestCache(5*time.Minute, 500)

	cache.Set("a", &record{ID: "a"})
	cache.Get("a")
	cache.Get("missing")
	cache.Delete("a")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 || stats.Deletes != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.TTL != 5*time.Minute {
		t.Errorf("expected TTL 5m, got %v", stats.TTL)
	}
}

func TestMemoryDefaultsShouldApply(t *testing.T) {
	cache := NewMemory[string, int](Config{})

	if cache.ttl != DefaultTTL || cache.maxSize != DefaultMaxSize {
		t.Errorf("defaults not applied: ttl=%v max=%d", cache.ttl, cache.maxSize)
	}
}

func TestMemoryConcurrentReadWriteShouldNotRace(t *testing.T) {
	cache := newTestCache(5*time.Minute, 50)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			cache.Set("p"+strconv.Itoa(id), &record{ID: strconv.Itoa(id)})
		}(i)
		go func(id int) {
			defer wg.Done()
			cache.Get("p" + strconv.Itoa(id))
		}(i)
	}
	wg.Wait()

	if cache.Len() > 50 {
		t.Errorf("cache grew past max size: %d", cache.Len())
	}
}
