package cache_test

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_StoresSlices(t *testing.T) {
	c := cache.New[[]int](5 * time.Minute)
	defer c.Close()

	c.Set("brands", []int{3, 2, 1})
	val, ok := c.Get("brands")
	if !ok || len(val) != 3 {
		t.Fatalf("expected stored slice, got %v (%v)", val, ok)
	}
}

func TestCache_SweepRemovesExpired(t *testing.T) {
	c := cache.New[int](10 * time.Millisecond)
	defer c.Close()

	c.Set("a", 1)
	time.Sleep(1500 * time.Millisecond)

	if c.Len() != 0 {
		t.Errorf("expected sweeper to drop expired entry, got %d entries", c.Len())
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	c.Close()
}

func TestRedis_UnreachableServerIsAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	c := cache.NewRedis[int](client, cache.RedisConfig{OpTimeout: 100 * time.Millisecond}, "count", time.Minute, zap.NewNop())

	c.Set("k", 7)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	c.Delete("k")
}
