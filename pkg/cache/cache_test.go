package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestTTLCache_GetSetRoundtrip(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", time.Minute)

	v, hit := c.Get("k")
	if !hit || v != "v" {
		t.Fatalf("expected hit with value 'v', got hit=%v v=%q", hit, v)
	}
}

func TestTTLCache_LazyExpiry(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := NewWithClock[int](clk)
	c.Set("k", 42, time.Second)

	clk.now = clk.now.Add(2 * time.Second)
	_, hit := c.Get("k")
	if hit {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, Len()=%d", c.Len())
	}
}

func TestTTLCache_MissingKey(t *testing.T) {
	c := New[int]()
	_, hit := c.Get("missing")
	if hit {
		t.Fatal("expected miss for unknown key")
	}
}

type memDurableStore struct {
	blobs map[string][]byte
}

func (m *memDurableStore) GetCache(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.blobs[key]
	return v, ok
}
func (m *memDurableStore) HasCache(_ context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}
func (m *memDurableStore) SetCache(_ context.Context, key string, val []byte) error {
	m.blobs[key] = val
	return nil
}
func (m *memDurableStore) GetGeodataCache(_ context.Context, key string) ([]byte, int, bool) {
	v, ok := m.blobs[key]
	return v, 500, ok
}
func (m *memDurableStore) SetGeodataCache(_ context.Context, key string, val []byte, radius int, lat, lon float64) error {
	m.blobs[key] = val
	return nil
}

func TestStoreBackedCache_NilStoreAlwaysMisses(t *testing.T) {
	c := NewStoreBackedCache(nil)
	if _, hit := c.GetCache(context.Background(), "k"); hit {
		t.Fatal("expected miss with nil store")
	}
	if err := c.SetCache(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("expected no error on SetCache with nil store, got %v", err)
	}
}

func TestStoreBackedCache_Roundtrip(t *testing.T) {
	s := &memDurableStore{blobs: make(map[string][]byte)}
	c := NewStoreBackedCache(s)

	if err := c.SetCache(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("SetCache: %v", err)
	}
	v, hit := c.GetCache(context.Background(), "k")
	if !hit || string(v) != "v" {
		t.Fatalf("expected hit with 'v', got hit=%v v=%q", hit, v)
	}
}
