package storage

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type countingStorage struct {
	resolves int
}

func (s *countingStorage) Save(_ context.Context, _ []byte, _ SaveOptions) (string, error) {
	return "key", nil
}

func (s *countingStorage) Exists(_ context.Context, _ string, _ int64) (bool, error) {
	return true, nil
}

func (s *countingStorage) ResolveReadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	s.resolves++
	return fmt.Sprintf("https://signed.example/%s?n=%d", key, s.resolves), nil
}

func TestReadURLCacheReusesFreshURL(t *testing.T) {
	inner := &countingStorage{}
	cache := NewReadURLCache(inner)

	first, err := cache.ResolveReadURL(context.Background(), "a/b.jpg", time.Hour)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := cache.ResolveReadURL(context.Background(), "a/b.jpg", time.Hour)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if first != second {
		t.Fatalf("expected cached URL, got %q then %q", first, second)
	}
	if inner.resolves != 1 {
		t.Fatalf("expected 1 inner resolve, got %d", inner.resolves)
	}
}

func TestReadURLCacheKeysAreIndependent(t *testing.T) {
	inner := &countingStorage{}
	cache := NewReadURLCache(inner)

	urlA, _ := cache.ResolveReadURL(context.Background(), "a.jpg", time.Hour)
	urlB, _ := cache.ResolveReadURL(context.Background(), "b.jpg", time.Hour)

	if urlA == urlB {
		t.Fatalf("distinct keys must not share URLs: %q", urlA)
	}
	if inner.resolves != 2 {
		t.Fatalf("expected 2 inner resolves, got %d", inner.resolves)
	}
}

func TestReadURLCacheInvalidate(t *testing.T) {
	inner := &countingStorage{}
	cache := NewReadURLCache(inner)

	if _, err := cache.ResolveReadURL(context.Background(), "a.jpg", time.Hour); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cache.Invalidate("a.jpg")
	if _, err := cache.ResolveReadURL(context.Background(), "a.jpg", time.Hour); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if inner.resolves != 2 {
		t.Fatalf("expected re-resolve after invalidate, got %d resolves", inner.resolves)
	}
}
