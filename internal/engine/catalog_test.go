package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCatalogCacheServesFreshValue(t *testing.T) {
	fetches := 0
	cache := NewCatalogCache(time.Hour, func(ctx context.Context) ([]string, error) {
		fetches++
		return []string{"API 34"}, nil
	})

	for i := 0; i < 3; i++ {
		got, err := cache.Get(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0] != "API 34" {
			t.Fatalf("unexpected value: %v", got)
		}
	}
	if fetches != 1 {
		t.Fatalf("fresh cache must fetch once, fetched %d times", fetches)
	}
}

func TestCatalogCacheRefetchesAfterExpiry(t *testing.T) {
	fetches := 0
	cache := NewCatalogCache(time.Nanosecond, func(ctx context.Context) (int, error) {
		fetches++
		return fetches, nil
	})

	if v, _ := cache.Get(context.Background()); v != 1 {
		t.Fatalf("expected first fetch, got %d", v)
	}
	time.Sleep(time.Millisecond)
	if v, _ := cache.Get(context.Background()); v != 2 {
		t.Fatalf("expired cache must refetch, got %d", v)
	}
}

func TestCatalogCacheFallsBackToStaleOnError(t *testing.T) {
	calls := 0
	cache := NewCatalogCache(time.Nanosecond, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "good", nil
		}
		return "", errors.New("sdkmanager unreachable")
	})

	if v, err := cache.Get(context.Background()); err != nil || v != "good" {
		t.Fatalf("expected initial value, got %q err %v", v, err)
	}
	time.Sleep(time.Millisecond)
	v, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("stale data must mask the fetch error, got %v", err)
	}
	if v != "good" {
		t.Fatalf("expected stale value, got %q", v)
	}
}

func TestCatalogCacheErrorWithoutData(t *testing.T) {
	cache := NewCatalogCache(time.Hour, func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})
	if _, err := cache.Get(context.Background()); err == nil {
		t.Fatal("first fetch failure with no fallback must surface the error")
	}
}

func TestCatalogCacheInvalidateForcesRefetch(t *testing.T) {
	fetches := 0
	cache := NewCatalogCache(time.Hour, func(ctx context.Context) (int, error) {
		fetches++
		return fetches, nil
	})

	if v, _ := cache.Get(context.Background()); v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
	cache.Invalidate()
	if v, _ := cache.Get(context.Background()); v != 2 {
		t.Fatalf("invalidated cache must refetch, got %d", v)
	}
}
