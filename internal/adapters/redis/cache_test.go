package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "mealsfly_review/internal/adapters/redis"
	"mealsfly_review/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	reviewer := int64(3)
	in := domain.Restaurant{
		ID: 9, Name: "Cached", ReviewStatus: domain.StatusCompleted, ReviewedBy: &reviewer,
		Images: &domain.ReviewImages{Banner: "https://img/b.jpg"},
	}

	var out domain.Restaurant
	if ok, err := c.Get(ctx, "restaurant:9", &out); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "restaurant:9", in, 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("mealsfly:restaurant:9") {
		t.Fatalf("key not namespaced")
	}
	ok, err := c.Get(ctx, "restaurant:9", &out)
	if !ok || err != nil {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if out.Name != "Cached" || out.ReviewedBy == nil || *out.ReviewedBy != 3 || out.Images.Banner != "https://img/b.jpg" {
		t.Fatalf("round trip lost data: %+v", out)
	}

	if err := c.Del(ctx, "restaurant:9"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if ok, _ := c.Get(ctx, "restaurant:9", &out); ok {
		t.Fatalf("key survived Del")
	}
}

func TestCache_TTLAndCorruptPayload(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", map[string]int{"a": 1}, 30); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(31 * time.Second)
	var dst map[string]int
	if ok, _ := c.Get(ctx, "k", &dst); ok {
		t.Fatalf("entry outlived its TTL")
	}

	if err := mr.Set("mealsfly:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ok, err := c.Get(ctx, "bad", &dst)
	if ok || err != nil {
		t.Fatalf("corrupt payload: ok=%v err=%v", ok, err)
	}
	if mr.Exists("mealsfly:bad") {
		t.Fatalf("corrupt payload should be evicted")
	}
}

func TestCache_ServerDown(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	var dst map[string]int
	if _, err := c.Get(context.Background(), "k", &dst); err == nil {
		t.Fatalf("expected an error from a dead server")
	}
}

func TestCache_NullFenceBlocksSetNX(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "restaurant:4", nil, 5); err != nil {
		t.Fatalf("fence: %v", err)
	}
	var got *domain.Restaurant
	ok, err := c.Get(ctx, "restaurant:4", &got)
	if !ok || err != nil || got != nil {
		t.Fatalf("fence should read back as null: ok=%v err=%v got=%+v", ok, err, got)
	}

	stale := domain.Restaurant{ID: 4, Name: "Stale", ReviewStatus: domain.StatusNotStarted}
	stored, err := c.SetNX(ctx, "restaurant:4", stale, 60)
	if stored || err != nil {
		t.Fatalf("SetNX over a fence: stored=%v err=%v", stored, err)
	}

	mr.FastForward(6 * time.Second)
	fresh := domain.Restaurant{ID: 4, Name: "Fresh", ReviewStatus: domain.StatusPending}
	stored, err = c.SetNX(ctx, "restaurant:4", fresh, 60)
	if !stored || err != nil {
		t.Fatalf("SetNX after the fence expired: stored=%v err=%v", stored, err)
	}
	if ok, _ := c.Get(ctx, "restaurant:4", &got); !ok || got == nil || got.Name != "Fresh" {
		t.Fatalf("refill lost: %+v", got)
	}
}
